package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartNotificationConsumer connects to RabbitMQ, declares both engine
// queues (durable), and starts consuming. Each message is appended to
// logs/notifications.log in a single-line, human-friendly format. The
// function runs a reconnect loop and keeps running across broker
// restarts; processing errors are logged and the offending message is
// rejected without requeue so the server continues operating.
func StartNotificationConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("notification-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("notification-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notification-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{WaitlistQueueName, BookingQueueName} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	waitlistMsgs, err := ch.Consume(WaitlistQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", WaitlistQueueName, err)
	}
	bookingMsgs, err := ch.Consume(BookingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", BookingQueueName, err)
	}

	for {
		select {
		case d, ok := <-waitlistMsgs:
			if !ok {
				return errors.New("waitlist deliveries channel closed")
			}
			handleDelivery(d, formatWaitlistLine)
		case d, ok := <-bookingMsgs:
			if !ok {
				return errors.New("booking deliveries channel closed")
			}
			handleDelivery(d, formatBookingLine)
		}
	}
}

func handleDelivery(d amqp.Delivery, format func([]byte) (string, error)) {
	line, err := format(d.Body)
	if err != nil {
		log.Printf("notification-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	if err := appendLogLine(line); err != nil {
		log.Printf("notification-consumer: write log failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func formatWaitlistLine(body []byte) (string, error) {
	var ev WaitlistSpotAvailableEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	return fmt.Sprintf("[%s] Waitlist spot offered | user_id=%d | availability_id=%d | claim_deadline=%s | message=%q\n",
		ev.NotifiedAt, ev.UserID, ev.AvailabilityID, ev.ClaimDeadline, ev.Message), nil
}

func formatBookingLine(body []byte) (string, error) {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	return fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%d | availability_id=%d | start=%s | product=%q | total=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.UserID, ev.AvailabilityID, ev.SlotStart, ev.ProductName, ev.TotalPrice), nil
}

func appendLogLine(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
