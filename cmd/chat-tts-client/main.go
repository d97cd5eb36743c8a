// Command chat-tts-client publishes chat messages to the service's inbound
// subject, waits for the speech record and optionally downloads the audio.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/objectstore"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagText     = "text"
	flagFile     = "file"
	flagNATSURL  = "nats-url"
	flagInbound  = "inbound"
	flagOutbound = "outbound"
	flagBucket   = "bucket"
	flagOutput   = "output"
	flagTimeout  = "timeout"
)

// Flag descriptions.
const (
	flagTextDesc     = "Chat message to synthesize"
	flagFileDesc     = "File with one chat message per line, published as one batch"
	flagNATSURLDesc  = "NATS server URL"
	flagInboundDesc  = "Subject the service consumes chat messages from"
	flagOutboundDesc = "Subject the service publishes speech records to"
	flagBucketDesc   = "Object store bucket holding speech files"
	flagOutputDesc   = "Write the synthesized audio to this path (.wav)"
	flagTimeoutDesc  = "How long to wait for the speech record"
)

// Error and log messages.
const (
	errEitherTextOrFile  = "Either --text or --file must be provided"
	errCannotSpecifyBoth = "Cannot specify both --text and --file"
	errNoMessages        = "no messages to publish"
	logPublished         = "Published %d message(s) to %s"
	logReceivedRecord    = "Received speech record %s"
	logWroteAudio        = "Wrote %d bytes of audio to %s"
)

// Defaults.
const (
	logFileNameDefault     = "chat-tts-client.log"
	audioFilePermissions   = 0o600
	defaultRecordTimeout   = 60 * time.Second
	defaultSpeechBucket    = "speechfiles"
	defaultInboundSubject  = "chat.text"
	defaultOutboundSubject = "chat.speech"
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text     string
	file     string
	natsURL  string
	inbound  string
	outbound string
	bucket   string
	output   string
	timeout  time.Duration
}

func main() {
	err := run(os.Args[1:])
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validateArguments(flags)
	if err != nil {
		return err
	}

	messages, err := collectMessages(flags)
	if err != nil {
		return err
	}

	clientLog, err := logger.New(os.TempDir(), logFileNameDefault)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer clientLog.Close()

	natsConnection, err := nats.Connect(flags.natsURL, nats.Name("chat-tts-client"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", flags.natsURL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	record, err := publishAndAwait(ctx, natsConnection, jetstreamContext, flags, messages)
	if err != nil {
		return err
	}

	clientLog.Info(logReceivedRecord, record.SpeechStoragePointer)

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	fmt.Println(string(encoded))

	if flags.output == "" {
		return nil
	}

	return downloadAudio(ctx, jetstreamContext, flags, record, clientLog)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("chat-tts-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flagSet.StringVar(&flags.natsURL, flagNATSURL, nats.DefaultURL, flagNATSURLDesc)
	flagSet.StringVar(&flags.inbound, flagInbound, defaultInboundSubject, flagInboundDesc)
	flagSet.StringVar(&flags.outbound, flagOutbound, defaultOutboundSubject, flagOutboundDesc)
	flagSet.StringVar(&flags.bucket, flagBucket, defaultSpeechBucket, flagBucketDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, defaultRecordTimeout, flagTimeoutDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return flags, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// validateArguments checks for required and conflicting arguments.
func validateArguments(flags appFlags) error {
	if flags.text == "" && flags.file == "" {
		return errors.New(errEitherTextOrFile)
	}

	if flags.text != "" && flags.file != "" {
		return errors.New(errCannotSpecifyBoth)
	}

	return nil
}

func collectMessages(flags appFlags) ([]string, error) {
	if flags.text != "" {
		return []string{flags.text}, nil
	}

	file, err := os.Open(flags.file)
	if err != nil {
		return nil, fmt.Errorf("failed to open messages file: %w", err)
	}
	defer file.Close()

	return readMessages(file)
}

// readMessages returns the non-blank lines of r.
func readMessages(r io.Reader) ([]string, error) {
	var messages []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			messages = append(messages, line)
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	if len(messages) == 0 {
		return nil, errors.New(errNoMessages)
	}

	return messages, nil
}

// publishAndAwait subscribes to the outbound subject before publishing so the
// record cannot be missed, then returns the first record received.
func publishAndAwait(
	ctx context.Context,
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	flags appFlags,
	messages []string,
) (*core.OutputRecord, error) {
	sub, err := natsConnection.SubscribeSync(flags.outbound)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", flags.outbound, err)
	}
	defer sub.Unsubscribe()

	for _, message := range messages {
		_, err = jetstreamContext.Publish(flags.inbound, []byte(message), nats.Context(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to publish to %s: %w", flags.inbound, err)
		}
	}

	fmt.Fprintf(os.Stderr, logPublished+"\n", len(messages), flags.inbound)

	msg, err := sub.NextMsgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("no speech record received on %s: %w", flags.outbound, err)
	}

	var record core.OutputRecord

	err = json.Unmarshal(msg.Data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode speech record: %w", err)
	}

	return &record, nil
}

func downloadAudio(
	ctx context.Context,
	jetstreamContext nats.JetStreamContext,
	flags appFlags,
	record *core.OutputRecord,
	clientLog *logger.Logger,
) error {
	store, err := objectstore.New(jetstreamContext, flags.bucket)
	if err != nil {
		return err
	}

	audio, _, err := store.Get(ctx, record.SpeechStoragePointer+".wav")
	if err != nil {
		return fmt.Errorf("failed to download speech file: %w", err)
	}

	err = os.WriteFile(flags.output, audio, audioFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	clientLog.Info(logWroteAudio, len(audio), flags.output)

	return nil
}
