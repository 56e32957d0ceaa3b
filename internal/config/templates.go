package config

import (
	"fmt"
	"os"
)

// Template returns the starter config for one edge node.
func Template() string {
	return edgeTemplate
}

// WriteTemplate writes the starter config, refusing to clobber an
// existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(edgeTemplate), 0o600)
}

const edgeTemplate = `edge_id = "edge-local"
addr = ":8080"
cors_origins = ["*"]

# Admission ceiling for weighted in-flight work.
capacity = 100.0

# Background field evolution pace.
tick_interval = "5s"

kv_path = "data/field.db"
analytics_path = "data/analytics.db"
blob_dir = "data/artifacts"

# Leave empty to disable the inference path.
inference_url = ""

queue_batch_size = 10
queue_poll_interval = "1s"
result_ttl = "1h"
`
