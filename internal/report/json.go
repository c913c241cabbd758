package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lxc/incus/v6/shared/revert"

	"github.com/nymph-fabric/fabric-bench/api"
)

// WriteJSON atomically writes the result file at path, creating its parent directory.
func WriteJSON(path string, res api.Result) error {
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}

	body = append(body, '\n')

	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}

	reverter := revert.New()
	defer reverter.Fail()

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	reverter.Add(func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	})

	_, err = f.Write(body)
	if err != nil {
		return err
	}

	err = f.Chmod(0o644)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return err
	}

	err = os.Rename(f.Name(), path)
	if err != nil {
		return err
	}

	reverter.Success()

	return nil
}

// ReadJSON loads a result file written by WriteJSON.
func ReadJSON(path string) (*api.Result, error) {
	body, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	res := &api.Result{}

	err = json.Unmarshal(body, res)
	if err != nil {
		return nil, err
	}

	return res, nil
}
