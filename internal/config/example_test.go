package config_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/normanking/cortex-emotion/internal/config"
)

// ExampleLoadFromPath demonstrates loading config from a specific path.
func ExampleLoadFromPath() {
	dir, err := os.MkdirTemp("", "cortex-emotion")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg, err := config.LoadFromPath(filepath.Join(dir, "emotion.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Provider: %s\n", cfg.LLM.DefaultProvider)
	fmt.Printf("Mode: %s\n", cfg.SSML.PerformanceMode)
	// Output:
	// Provider: ollama
	// Mode: quality
}

// ExampleConfig_Validate demonstrates configuration validation.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Snapshot.Backend = "postgres"

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}
	// Output:
	// invalid snapshot.backend 'postgres', must be one of: none, sqlite, redis
}
