package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/bizflycloud/zfs-backup/pkg/broker"
)

const (
	clientDisconnectWaitTimeout = 250
	lastWillTestatement         = `{"status": "OFFLINE"}`
)

var _ broker.Broker = (*MQTTBroker)(nil)

var ErrNoConnection = errors.New("no connection to broker server")

var tokenWaitTimeout = 3 * time.Second

type MQTTBroker struct {
	uri      *url.URL
	username string
	password string
	clientID string
	client   mqtt.Client
	qos      byte
	retained bool
	logger   *zap.Logger
}

func NewBroker(opts ...Option) (*MQTTBroker, error) {
	m := &MQTTBroker{}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.uri == nil {
		return nil, errors.New("empty broker url")
	}
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		m.logger = l
	}
	m.qos = 1
	return m, nil
}

func (m *MQTTBroker) opts() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + m.uri.Host)
	username := m.username
	if u := m.uri.User.Username(); u != "" {
		username = u
	}
	opts.SetUsername(username)
	password := m.password
	if p, isSet := m.uri.User.Password(); isSet {
		password = p
	}
	opts.SetPassword(password)
	opts.SetClientID(m.clientID)
	opts.SetCleanSession(false)

	opts.OnConnect = func(client mqtt.Client) {
		m.logger.Debug("Connected to broker", zap.String("broker", m.uri.Host))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		m.logger.Warn("Connection lost with broker", zap.Error(err))
	}

	opts.SetWill("zfs-backup/"+m.clientID, lastWillTestatement, 0, false)
	return opts
}

func (m *MQTTBroker) Connect() error {
	client := mqtt.NewClient(m.opts())
	token := client.Connect()
	if !token.WaitTimeout(tokenWaitTimeout) {
		return fmt.Errorf("connect to %s: timed out after %s", m.uri.Host, tokenWaitTimeout)
	}
	if err := token.Error(); err != nil {
		return err
	}
	m.client = client
	return nil
}

func (m *MQTTBroker) Disconnect() error {
	if m.client == nil {
		return ErrNoConnection
	}

	m.client.Disconnect(clientDisconnectWaitTimeout)
	m.client = nil

	return nil
}

func (m *MQTTBroker) Publish(topic string, payload interface{}) error {
	if m.client == nil {
		return ErrNoConnection
	}
	token := m.client.Publish(topic, m.qos, m.retained, payload)
	if !token.WaitTimeout(tokenWaitTimeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, tokenWaitTimeout)
	}

	return token.Error()
}

func (m *MQTTBroker) String() string {
	return fmt.Sprintf("Broker [%s]", m.clientID)
}
