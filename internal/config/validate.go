package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("store.driver must be memory or sqlite (got %q)", c.Store.Driver)
	}
}

func (c *Config) validateEndpoints() error {
	for key, value := range map[string]string{
		"resolver.api_url":            c.Resolver.APIURL,
		"asr.api_url":                 c.ASR.APIURL,
		"llm.base_url":                c.LLM.BaseURL,
		"media_proxy.public_base_url": c.MediaProxy.PublicBaseURL,
		"notifications.ntfy_topic":    c.Notifications.NtfyTopic,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) url", key)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"resolver.timeout_ms":     c.Resolver.TimeoutMS,
		"asr.timeout_ms":          c.ASR.TimeoutMS,
		"asr.poll_interval_ms":    c.ASR.PollIntervalMS,
		"asr.max_polls":           c.ASR.MaxPolls,
		"llm.timeout_ms":          c.LLM.TimeoutMS,
		"media_proxy.ttl_seconds": c.MediaProxy.TTLSeconds,
		"media_proxy.max_records": c.MediaProxy.MaxRecords,
	})
}

func (c *Config) validateQuality() error {
	q := c.Quality
	if q.StyleSimilarityThreshold <= 0 || q.StyleSimilarityThreshold > 1 {
		return errors.New("quality.style_similarity_threshold must be between 0 and 1")
	}
	if q.StructureMatchThreshold <= 0 || q.StructureMatchThreshold > 1 {
		return errors.New("quality.structure_match_threshold must be between 0 and 1")
	}
	if q.LengthMinRatio >= q.LengthMaxRatio {
		return errors.New("quality.length_min_ratio must be less than quality.length_max_ratio")
	}
	if q.MaxRegenerate > 10 {
		return errors.New("quality.max_regenerate must be <= 10")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	hasKey := strings.TrimSpace(c.LLM.APIKey) != ""
	hasModel := strings.TrimSpace(c.LLM.Model) != ""
	if hasKey && !hasModel {
		return errors.New("llm.model must be set when llm.api_key is set (or set VOLCENGINE_LLM_MODEL)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
