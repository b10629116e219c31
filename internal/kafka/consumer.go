package kafka

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its offset may be committed.
// Errors are retried; wrap an error with Permanent to skip a message that can never succeed.
type Handler func(ctx context.Context, m kafka.Message) error

// Backoff between handler attempts on one message.
var (
	RetryBase = 200 * time.Millisecond
	RetryMax  = 30 * time.Second
)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The consumer logs it and commits past the message.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fans messages out to workers by partition, so each partition is
// handled and committed in offset order by a single worker.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := process(ctx, h, c.r, m); err != nil {
					return
				}
			}
		}(lanes[i])
	}
	stop := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process runs h until it succeeds or fails permanently, then commits m.
// It returns an error only when ctx ends first; m stays uncommitted and is
// redelivered to whoever owns the partition next.
func process(ctx context.Context, h Handler, c committer, m kafka.Message) error {
	wait := RetryBase
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		if IsPermanent(err) {
			log.Printf("skip %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
			break
		}
		log.Printf("handle %s/%d@%d attempt %d: %v", m.Topic, m.Partition, m.Offset, attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if wait *= 2; wait > RetryMax {
			wait = RetryMax
		}
	}
	if err := c.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("commit %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
	}
	return nil
}
