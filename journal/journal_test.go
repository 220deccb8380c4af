package journal_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/pairchat/journal"
	journal_mock "github.com/mqy/pairchat/journal/mock"
	pb "github.com/mqy/pairchat/proto"
)

func runKafka(t *testing.T, k *journal.Kafka) (context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 1)
	go k.Run(ctx, done)
	return cancel, done
}

func TestKafkaWritesEvents(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := journal_mock.NewMockIKafkaWriter(mockCtrl)
	k := journal.NewKafka(writer, 8, 1024)

	written := make(chan kafka.Message, 2)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, msgs ...kafka.Message) error {
			written <- msgs[0]
			return nil
		}).Times(2)
	writer.EXPECT().Close().Return(nil).Times(1)

	cancel, done := runKafka(t, k)

	m := &pb.Message{Id: "m1", From: "u2", To: "u1", Payload: "secret", CreateTime: 7}
	k.Publish(journal.NewEvent(journal.EventCreated, m))
	m.Status = pb.StatusRead
	k.Publish(journal.NewEvent(journal.EventStatus, m))

	for i, typ := range []string{journal.EventCreated, journal.EventStatus} {
		select {
		case km := <-written:
			assert.Equal(t, "u1:u2", string(km.Key))
			var e journal.Event
			require.NoError(t, json.Unmarshal(km.Value, &e))
			assert.Equal(t, typ, e.Type, "event %d", i)
			assert.NotContains(t, string(km.Value), "secret")
		case <-time.After(time.Second):
			t.Fatalf("event %d not written", i)
		}
	}

	cancel()
	<-done
}

func TestKafkaRetriesThenGivesUp(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := journal_mock.NewMockIKafkaWriter(mockCtrl)
	k := journal.NewKafka(writer, 8, 1024)
	k.NoSleep()

	attempts := make(chan struct{}, 16)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, msgs ...kafka.Message) error {
			attempts <- struct{}{}
			return errors.New("broker down")
		}).Times(5)
	writer.EXPECT().Close().Return(nil).Times(1)

	cancel, done := runKafka(t, k)
	k.Publish(journal.NewEvent(journal.EventCreated, &pb.Message{Id: "m1", From: "a", To: "b"}))

	for i := 0; i < 5; i++ {
		select {
		case <-attempts:
		case <-time.After(time.Second):
			t.Fatalf("attempt %d missing", i+1)
		}
	}
	cancel()
	<-done
}

func TestKafkaDropsOversizedEvent(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := journal_mock.NewMockIKafkaWriter(mockCtrl)
	k := journal.NewKafka(writer, 8, 16)
	writer.EXPECT().Close().Return(nil).Times(1)

	cancel, done := runKafka(t, k)
	k.Publish(journal.NewEvent(journal.EventCreated, &pb.Message{Id: "m1", From: "a", To: "b"}))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	k := journal.NewKafka(nil, 1, 1024)
	e := journal.NewEvent(journal.EventCreated, &pb.Message{Id: "m1"})
	k.Publish(e)
	k.Publish(e) // dropped
	journal.Nop.Publish(e)
}

func TestBackoff(t *testing.T) {
	var d time.Duration
	journal.Backoff(&d)
	assert.Equal(t, journal.BackoffMinInterval, d)
	journal.Backoff(&d)
	assert.Equal(t, 1500*time.Millisecond, d)
	d = journal.BackoffMaxInterval
	journal.Backoff(&d)
	assert.Equal(t, journal.BackoffMinInterval, d)
}
