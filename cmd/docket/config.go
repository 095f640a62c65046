// Copyright 2025 Poiesic Systems
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


package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/docket/ai"
)

// fileConfig is the optional TOML configuration file. Every field can also
// be set through flags or DOCKET_* environment variables; flags win over
// environment, environment wins over file.
type fileConfig struct {
	DB       string       `toml:"db"`
	LogLevel string       `toml:"log_level"`
	AI       fileConfigAI `toml:"ai"`
}

type fileConfigAI struct {
	EmbeddingHost    string `toml:"embedding_host"`
	ChatHost         string `toml:"chat_host"`
	EmbeddingModel   string `toml:"embedding_model"`
	ExtractorModel   string `toml:"extractor_model"`
	SynthesizerModel string `toml:"synthesizer_model"`
	BatchSize        int    `toml:"batch_size"`
}

// loadConfig reads the TOML file at path. A missing file is an error only
// when the path was given explicitly.
func loadConfig(path string, explicit bool) (*fileConfig, error) {
	config := &fileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}

// applyEnv overlays DOCKET_* environment variables onto the file config.
func (c *fileConfig) applyEnv() {
	overlay := func(target *string, key string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	overlay(&c.DB, "DOCKET_DB")
	overlay(&c.LogLevel, "DOCKET_LOG_LEVEL")
	overlay(&c.AI.EmbeddingHost, "DOCKET_EMBEDDING_HOST")
	overlay(&c.AI.ChatHost, "DOCKET_CHAT_HOST")
	overlay(&c.AI.EmbeddingModel, "DOCKET_EMBEDDING_MODEL")
	overlay(&c.AI.ExtractorModel, "DOCKET_EXTRACTOR_MODEL")
	overlay(&c.AI.SynthesizerModel, "DOCKET_SYNTHESIZER_MODEL")
}

// aiConfig converts the file config into the AI service configuration,
// leaving defaults in place for unset fields.
func (c *fileConfig) aiConfig() *ai.Config {
	opts := []ai.ConfigOption{}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.ChatHost != "" {
		opts = append(opts, ai.WithChatHost(c.AI.ChatHost))
	}
	if c.AI.EmbeddingModel != "" {
		opts = append(opts, ai.WithEmbeddingModel(c.AI.EmbeddingModel))
	}
	if c.AI.ExtractorModel != "" {
		opts = append(opts, ai.WithExtractorModel(c.AI.ExtractorModel))
	}
	if c.AI.SynthesizerModel != "" {
		opts = append(opts, ai.WithSynthesizerModel(c.AI.SynthesizerModel))
	}
	if c.AI.BatchSize > 0 {
		opts = append(opts, ai.WithBatchSize(c.AI.BatchSize))
	}
	return ai.NewConfig(opts...)
}
