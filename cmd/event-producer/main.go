package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// ScoreEvent matches the JSON the consumer expects
type ScoreEvent struct {
	EventID    string    `json:"event_id,omitempty"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	EventKind  string    `json:"event_kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

var moderatorPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

// Weighted mix of event kinds: mostly plain whacks, occasional bans and
// superwhacks.
var eventKinds = []struct {
	kind   string
	weight int
}{
	{"whack", 70},
	{"timeout", 20},
	{"ban", 8},
	{"superwhack", 2},
}

func pickEventKind() string {
	total := 0
	for _, ek := range eventKinds {
		total += ek.weight
	}
	n := rand.Intn(total)
	for _, ek := range eventKinds {
		if n < ek.weight {
			return ek.kind
		}
		n -= ek.weight
	}
	return eventKinds[0].kind
}

func getModeratorName(idx int) string {
	prefixIdx := idx % len(moderatorPrefixes)
	suffix := idx/len(moderatorPrefixes) + 1
	return fmt.Sprintf("%s%d", moderatorPrefixes[prefixIdx], suffix)
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "whack-events", "Kafka topic")
	totalMods := flag.Int("moderators", 200, "Number of distinct moderators to simulate")
	eventsPerSecond := flag.Int("rate", 50, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	godotenv.Load()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Whackboard Event Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Moderators:       %d\n", *totalMods)
	fmt.Printf("  Events/sec:       %d\n", *eventsPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	// Send message helper
	sendEvent := func(event ScoreEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		// Key by user id so one moderator's events stay on one partition,
		// preserving per-user ordering through the consumer group.
		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	fmt.Printf("Producing events (%d/sec), press Ctrl+C to stop\n\n", *eventsPerSecond)

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var sentCount int64

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				shutdown()
				return
			}

			// The busiest moderators produce most of the traffic.
			var modIdx int
			if rand.Intn(100) < 70 {
				modIdx = rand.Intn(20)
			} else {
				modIdx = rand.Intn(*totalMods)
			}

			name := getModeratorName(modIdx)
			event := ScoreEvent{
				EventID:    uuid.New().String(),
				UserID:     fmt.Sprintf("mod-%04d", modIdx),
				Username:   name,
				EventKind:  pickEventKind(),
				OccurredAt: time.Now().UTC(),
			}
			sendEvent(event)
			atomic.AddInt64(&sentCount, 1)

		case <-statsTicker.C:
			sent := atomic.LoadInt64(&sentCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Produced: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				sent,
				success,
				errors,
			)
		}
	}
}
