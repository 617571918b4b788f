package api

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"sigs.k8s.io/yaml"
)

const openAPISourcePath = "api/openapi.yaml"

var (
	openAPIJSON    []byte
	openAPIJSONErr error
	openAPIOnce    sync.Once
)

// OpenAPIHandler serves the contract as JSON, converted once from the
// YAML source and cached for the life of the process.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		openAPIOnce.Do(func() {
			data, err := os.ReadFile(resolveOpenAPIPath())
			if err != nil {
				openAPIJSONErr = err
				return
			}
			openAPIJSON, openAPIJSONErr = yaml.YAMLToJSON(data)
		})

		if openAPIJSONErr != nil {
			http.Error(w, "openapi unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openAPIJSON)
	}
}

// resolveOpenAPIPath prefers the path relative to the working directory
// (the deployed layout) and falls back to the repository root so tests
// running from a package directory still find the contract.
func resolveOpenAPIPath() string {
	if _, err := os.Stat(openAPISourcePath); err == nil {
		return openAPISourcePath
	}
	root, err := repoRoot()
	if err != nil {
		return openAPISourcePath
	}
	return filepath.Join(root, openAPISourcePath)
}

func repoRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", os.ErrNotExist
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	if _, err := os.Stat(root); err != nil {
		return "", err
	}
	return root, nil
}
