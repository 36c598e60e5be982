// Package eventsink provides the default downstream EventSink: it logs
// every emitted event as a structured logrus entry. The collection
// core treats the sink as an external collaborator (see
// types.EventSink); this package exists so the CLI has something to
// run against without an operator wiring in their own forwarder.
package eventsink

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/long0419/splunk-event-collector/internal/types"
)

// LoggingSink emits every event as a structured log line and never
// fails, making it a safe default for the standalone CLI.
type LoggingSink struct{}

// NewLoggingSink builds a LoggingSink.
func NewLoggingSink() *LoggingSink {
	return &LoggingSink{}
}

// Submit implements types.EventSink.
func (s *LoggingSink) Submit(_ context.Context, instance types.InstanceConfig, search types.SavedSearch, evts []types.EventRecord) error {
	for _, e := range evts {
		fields := log.Fields{
			"instance":  instance.BaseURL,
			"search":    search.Name,
			"timestamp": e.Timestamp,
			"tags":      e.Tags,
		}
		if e.EventType != nil {
			fields["event_type"] = *e.EventType
		}
		if e.MsgTitle != nil {
			fields["msg_title"] = *e.MsgTitle
		}
		if e.MsgText != nil {
			fields["msg_text"] = *e.MsgText
		}
		if e.SourceTypeName != nil {
			fields["source_type_name"] = *e.SourceTypeName
		}
		log.WithFields(fields).Info("splunk event")
	}
	return nil
}
