package cmd

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/huangsam/moze/schema"
	"github.com/spf13/viper"
)

// answersDocument is the shape of an answers file: a top-level "answers" list.
type answersDocument struct {
	Answers []schema.Answer `mapstructure:"answers"`
}

// readDocument decodes a YAML, JSON or TOML file into target. Window bounds
// may be written as RFC3339 strings.
func readDocument(path string, target any) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(target, hook); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// loadDraft reads a form definition file.
func loadDraft(path string) (schema.FormDraft, error) {
	var draft schema.FormDraft
	if err := readDocument(path, &draft); err != nil {
		return schema.FormDraft{}, err
	}
	return draft, nil
}

// loadAnswers reads an answers file.
func loadAnswers(path string) ([]schema.Answer, error) {
	var doc answersDocument
	if err := readDocument(path, &doc); err != nil {
		return nil, err
	}
	if len(doc.Answers) == 0 {
		return nil, fmt.Errorf("%s has no answers", path)
	}
	return doc.Answers, nil
}
