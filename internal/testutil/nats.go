package testutil

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// SetupJetStream starts an embedded NATS server with JetStream enabled and
// returns a connected JetStream context plus a cleanup function
func SetupJetStream(t *testing.T) (nats.JetStreamContext, func()) {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // random free port
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	s, err := server.NewServer(opts)
	require.NoError(t, err)

	go s.Start()
	if !s.ReadyForConnections(10 * time.Second) {
		t.Fatal("unable to start NATS server")
	}

	nc, err := nats.Connect(s.ClientURL(), nats.Timeout(5*time.Second))
	require.NoError(t, err)

	js, err := nc.JetStream(nats.MaxWait(5 * time.Second))
	require.NoError(t, err)

	cleanup := func() {
		nc.Close()
		s.Shutdown()
	}

	return js, cleanup
}

// ConsumeMessages collects messages published to a subject for the given
// duration
func ConsumeMessages(js nats.JetStreamContext, subject string, duration time.Duration) ([][]byte, error) {
	var messages [][]byte
	msgChan := make(chan *nats.Msg, 100)
	sub, err := js.Subscribe(subject, func(msg *nats.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	for {
		select {
		case msg := <-msgChan:
			messages = append(messages, msg.Data)
		case <-timer.C:
			return messages, nil
		}
	}
}
