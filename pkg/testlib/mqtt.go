package testlib

import (
	"fmt"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
)

const (
	brokerRepo = "vernemq/vernemq"
	brokerTag  = "latest-alpine"
)

// RunWithBroker starts a disposable MQTT broker and calls fn with its url.
// The test is skipped when EXCLUDE_MQTT is set.
func RunWithBroker(t *testing.T, ready func(url string) error, fn func(url string)) {
	t.Helper()
	if os.Getenv("EXCLUDE_MQTT") != "" {
		t.Skip("EXCLUDE_MQTT is set")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}
	resource, err := pool.Run(brokerRepo, brokerTag, []string{"DOCKER_VERNEMQ_USER_foo=bar", "DOCKER_VERNEMQ_ACCEPT_EULA=yes"})
	if err != nil {
		t.Fatalf("Could not start resource: %s", err)
	}
	defer func() {
		if err := pool.Purge(resource); err != nil {
			t.Fatalf("Could not purge resource: %s", err)
		}
	}()

	url := MqttURL(resource.GetHostPort("1883/tcp"))
	if err := pool.Retry(func() error { return ready(url) }); err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}
	fn(url)
}

func MqttURL(hostPort string) string {
	return fmt.Sprintf("mqtt://foo:bar@%s", hostPort)
}
