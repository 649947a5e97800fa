// Package config provides configuration management for the emotion engine.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.cortex/emotion.yaml and is automatically
// created with sensible defaults on first use.
//
// # Environment Variables
//
// Values present in the file can be overridden using environment variables
// with the CORTEX_EMOTION_ prefix. Nested fields are separated by underscores.
//
// Examples:
//   - CORTEX_EMOTION_LLM_DEFAULT_PROVIDER=openai
//   - CORTEX_EMOTION_CLASSIFIER_USE_AI=true
//   - CORTEX_EMOTION_SNAPSHOT_BACKEND=redis
//   - CORTEX_EMOTION_LOGGING_LEVEL=debug
package config
