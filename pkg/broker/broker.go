package broker

// Broker publishes run notifications to a message broker.
type Broker interface {
	Connect() error
	Disconnect() error
	Publish(topic string, payload interface{}) error
	String() string
}
