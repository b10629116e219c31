package kafka

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages in an inbox and writes them from one goroutine so
// request handlers never block on the broker.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					log.Printf("kafka write topic=%s n=%d: %v", topic, len(msgs), err)
				}
			},
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				// drain whatever is already queued
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							_ = p.w.Close()
							return
						}
						p.write(m)
					default:
						_ = p.w.Close()
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Printf("kafka publish topic=%s key=%s: %v", p.w.Topic, m.Key, err)
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close closes the inbox; the writer goroutine flushes the rest and exits.
func (p *Producer) Close() { close(p.inbox) }

// WaitClosed blocks until the writer goroutine is done.
func (p *Producer) WaitClosed() { <-p.closeCh }
