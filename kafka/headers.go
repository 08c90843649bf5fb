package kafka

import (
	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/propagation"
)

var (
	_ propagation.TextMapCarrier = producerHeaders{}
	_ propagation.TextMapCarrier = consumerHeaders{}
)

// producerHeaders writes trace context into an outgoing message.
type producerHeaders struct{ msg *sarama.ProducerMessage }

func (h producerHeaders) Get(key string) string {
	for _, rh := range h.msg.Headers {
		if string(rh.Key) == key {
			return string(rh.Value)
		}
	}
	return ""
}

func (h producerHeaders) Set(key, value string) {
	for i, rh := range h.msg.Headers {
		if string(rh.Key) == key {
			h.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	h.msg.Headers = append(h.msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (h producerHeaders) Keys() []string {
	keys := make([]string, 0, len(h.msg.Headers))
	for _, rh := range h.msg.Headers {
		keys = append(keys, string(rh.Key))
	}
	return keys
}

// consumerHeaders reads trace context from a consumed message. It is read-only.
type consumerHeaders struct{ msg *sarama.ConsumerMessage }

func (h consumerHeaders) Get(key string) string {
	for _, rh := range h.msg.Headers {
		if rh != nil && string(rh.Key) == key {
			return string(rh.Value)
		}
	}
	return ""
}

func (h consumerHeaders) Set(string, string) {}

func (h consumerHeaders) Keys() []string {
	keys := make([]string, 0, len(h.msg.Headers))
	for _, rh := range h.msg.Headers {
		if rh != nil {
			keys = append(keys, string(rh.Key))
		}
	}
	return keys
}
