// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package activity emits the item-activity log: one Avro-encoded record per
// file-level state change, published to a single kafka topic. The event log
// is authoritative, so a failed send fails the operation that produced it.
package activity

import (
	"context"
	_ "embed"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/pkg/errors"
	kafka "github.com/segmentio/kafka-go"

	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// Topic is the kafka topic all item activity goes to.
const Topic = "metadata.items.activity"

//go:embed item_activity_schema.avsc
var schemaJSON string

var itemActivitySchema = avro.MustParse(schemaJSON)

// Type is the activity type recorded with an event.
type Type string

const (
	TypeCreate Type = "create"
	TypeCopy   Type = "copy"
	TypeDelete Type = "delete"
)

// Change records one property transition of a copied item.
type Change struct {
	ItemProperty string `avro:"item_property"`
	OldValue     string `avro:"old_value"`
	NewValue     string `avro:"new_value"`
}

// Event is one item-activity record as serialized onto the topic.
type Event struct {
	ActivityType   string    `avro:"activity_type"`
	ActivityTime   time.Time `avro:"activity_time"`
	ItemID         string    `avro:"item_id"`
	ItemType       string    `avro:"item_type"`
	ItemName       string    `avro:"item_name"`
	ItemParentPath string    `avro:"item_parent_path"`
	ContainerCode  string    `avro:"container_code"`
	ContainerType  string    `avro:"container_type"`
	Zone           int       `avro:"zone"`
	User           string    `avro:"user"`
	ImportedFrom   string    `avro:"imported_from"`
	Changes        []Change  `avro:"changes"`
}

// newEvent builds the record for one file operation. For a copy the output
// node is the promoted destination item; for a delete it is nil and the
// parent path is replaced by the pre-archive restore path.
func newEvent(activityType Type, input *models.Node, operator string, output *models.Node) Event {
	event := Event{
		ActivityType:   string(activityType),
		ActivityTime:   time.Now().UTC(),
		ItemID:         input.ID,
		ItemType:       string(input.Type),
		ItemName:       input.Name,
		ItemParentPath: input.ParentPath,
		ContainerCode:  input.ContainerCode,
		ContainerType:  input.ContainerType,
		Zone:           int(input.Zone),
		User:           operator,
		ImportedFrom:   "",
		Changes:        []Change{},
	}

	switch activityType {
	case TypeDelete:
		event.ItemParentPath = input.RestorePath
	case TypeCopy:
		event.Changes = []Change{
			{ItemProperty: "path", OldValue: input.DisplayPath(), NewValue: output.DisplayPath()},
			{ItemProperty: "id", OldValue: input.ID, NewValue: output.ID},
		}
	}

	return event
}

// Producer publishes item-activity events. One producer exists per process
// and must be closed before exit so buffered sends are flushed.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer returns a producer connected to the given bootstrap address.
func NewProducer(bootstrap string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(bootstrap),
			Topic:        Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// EmitFileOperation validates and publishes one event.
func (p *Producer) EmitFileOperation(ctx context.Context, activityType Type, input *models.Node, operator string, output *models.Node) error {
	event := newEvent(activityType, input, operator, output)

	data, err := avro.Marshal(itemActivitySchema, &event)
	if err != nil {
		return errors.Wrap(err, "error encoding activity event")
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(input.ID), Value: data}); err != nil {
		return errors.Wrap(err, "error sending activity event")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
