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

// Package config loads the worker settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Settings holds the service configuration. Every field can be overridden
// through an environment variable of the same name.
type Settings struct {
	AppName       string `mapstructure:"APP_NAME"`
	LoggingLevel  string `mapstructure:"LOGGING_LEVEL"`
	LoggingFormat string `mapstructure:"LOGGING_FORMAT"`

	S3Host          string `mapstructure:"S3_HOST"`
	S3Port          int    `mapstructure:"S3_PORT"`
	S3InternalHTTPS bool   `mapstructure:"S3_INTERNAL_HTTPS"`
	S3AccessKey     string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey     string `mapstructure:"S3_SECRET_KEY"`

	DataopsService      string `mapstructure:"DATAOPS_SERVICE"`
	MetadataService     string `mapstructure:"METADATA_SERVICE"`
	ProjectService      string `mapstructure:"PROJECT_SERVICE"`
	DatasetService      string `mapstructure:"DATASET_SERVICE"`
	ApprovalService     string `mapstructure:"APPROVAL_SERVICE"`
	NotificationService string `mapstructure:"NOTIFICATION_SERVICE"`

	GreenZoneLabel string `mapstructure:"GREEN_ZONE_LABEL"`
	CoreZoneLabel  string `mapstructure:"CORE_ZONE_LABEL"`

	TempDir               string `mapstructure:"TEMP_DIR"`
	CopiedWithApprovalTag string `mapstructure:"COPIED_WITH_APPROVAL_TAG"`

	RedisUser     string `mapstructure:"REDIS_USER"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`

	KafkaURL string `mapstructure:"KAFKA_URL"`

	// DeleteObjectData removes object bytes during archival. The platform
	// default keeps the bytes and only archives the metadata item.
	DeleteObjectData bool `mapstructure:"DELETE_OBJECT_DATA"`
}

// S3Endpoint returns the host:port pair of the object store.
func (s *Settings) S3Endpoint() string {
	return fmt.Sprintf("%s:%d", s.S3Host, s.S3Port)
}

// RedisAddr returns the host:port pair of the redis instance.
func (s *Settings) RedisAddr() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

func defaults() *Settings {
	return &Settings{
		AppName:               "pipelines",
		LoggingLevel:          "info",
		LoggingFormat:         "json",
		S3Port:                9000,
		DataopsService:        "http://127.0.0.1:5063",
		MetadataService:       "http://127.0.0.1:5066",
		ProjectService:        "http://127.0.0.1:5064",
		DatasetService:        "http://127.0.0.1:5081",
		ApprovalService:       "http://127.0.0.1:8000",
		NotificationService:   "http://127.0.0.1:5065",
		GreenZoneLabel:        "Greenroom",
		CoreZoneLabel:         "Core",
		TempDir:               "./filecopy",
		CopiedWithApprovalTag: "copied-to-core",
		RedisUser:             "default",
		RedisHost:             "127.0.0.1",
		RedisPort:             6379,
	}
}

// FromEnv returns the settings with environment overrides applied on top of
// the defaults.
func FromEnv() (*Settings, error) {
	return fromMap(environMap())
}

func environMap() map[string]interface{} {
	m := map[string]interface{}{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

func fromMap(m map[string]interface{}) (*Settings, error) {
	s := defaults()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating settings decoder")
	}

	if err := decoder.Decode(m); err != nil {
		return nil, errors.Wrap(err, "error decoding settings from environment")
	}

	return s, nil
}
