// Package config loads the composition root's process configuration
// from environment variables, matching the flat key families §6 names
// (SqlConnectionString, KubernetesConfig:{...}, Messaging:{...},
// Storage:{...}, Notifications:SendGrid:{...}). Each nested key becomes
// one SCREAMING_SNAKE_CASE env var; there is no config file format here
// because the source deployment carries none either.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is every environment-supplied setting the composition root
// needs to build the C1-C8 collaborators.
type Config struct {
	HTTPAddr string

	SQLConnectionString string

	KubernetesProvider   string // "aks" or "openshift"
	KubernetesKubeconfig string
	ContainerRegistry    string

	MessagingProvider    string // "kafka" or "" (fake)
	KafkaBootstrapServers []string
	KafkaTestResultsTopic string

	StorageProvider           string // "azureblob" or "" (fake)
	StorageConnectionString   string
	StorageTestResultsContainer string

	SendGridAPIKey      string
	SendGridSenderEmail string
	SendGridSenderName  string

	WebhookEnabled bool
}

// FromEnv reads Config from the process environment, applying the same
// defaults a local/dev run needs to come up with every external
// collaborator faked out.
func FromEnv() Config {
	return Config{
		HTTPAddr: getOr("HTTP_ADDR", ":8080"),

		SQLConnectionString: getOr("SQL_CONNECTION_STRING", "testexec.db"),

		KubernetesProvider:   strings.ToLower(getOr("KUBERNETES_PROVIDER", "aks")),
		KubernetesKubeconfig: os.Getenv("KUBERNETES_KUBECONFIG_PATH"),
		ContainerRegistry:    getOr("CONTAINER_REGISTRY", "registry.example.com"),

		MessagingProvider:     strings.ToLower(os.Getenv("MESSAGING_PROVIDER")),
		KafkaBootstrapServers: splitCSV(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),
		KafkaTestResultsTopic: getOr("KAFKA_TEST_RESULTS_TOPIC", "test-results-metadata"),

		StorageProvider:             strings.ToLower(os.Getenv("STORAGE_PROVIDER")),
		StorageConnectionString:     os.Getenv("STORAGE_CONNECTION_STRING"),
		StorageTestResultsContainer: getOr("STORAGE_TEST_RESULTS_CONTAINER", "test-results"),

		SendGridAPIKey:      os.Getenv("SENDGRID_API_KEY"),
		SendGridSenderEmail: getOr("SENDGRID_SENDER_EMAIL", "testexec@example.com"),
		SendGridSenderName:  getOr("SENDGRID_SENDER_NAME", "TestExec Control Plane"),

		WebhookEnabled: parseBool(os.Getenv("WEBHOOK_ENABLED")),
	}
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
