package visualizer

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/roomi-app/roomi-backend/internal/logging"
)

// Events fans controller snapshots out to stream subscribers over an
// in-process watermill channel, one topic per view.
type Events struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

func NewEvents() *Events {
	return &Events{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		log: logging.Component("visualizer.events"),
	}
}

func Topic(ownerID, projectID string) string {
	return "visualizer." + ownerID + "." + projectID
}

func (e *Events) Publish(topic string, snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		e.log.Error().Err(err).Str("topic", topic).Msg("failed to encode snapshot")
		return
	}
	if err := e.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		e.log.Warn().Err(err).Str("topic", topic).Msg("failed to publish snapshot")
	}
}

// Subscribe streams snapshots published on topic until ctx is done.
func (e *Events) Subscribe(ctx context.Context, topic string) (<-chan Snapshot, error) {
	msgs, err := e.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var snap Snapshot
			err := json.Unmarshal(msg.Payload, &snap)
			msg.Ack()
			if err != nil {
				e.log.Warn().Err(err).Str("topic", topic).Msg("dropping undecodable snapshot")
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (e *Events) Close() error {
	return e.pubsub.Close()
}
