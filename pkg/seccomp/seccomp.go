// Copyright 2025 vArmor Authors
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

// Package seccomp processes the seccomp profile
package seccomp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

func isJSON(content []byte) bool {
	var js interface{}
	return json.Unmarshal(content, &js) == nil
}

// SaveSeccompProfile atomically creates or replaces the profile. Every failure
// is a *WriteError.
func SaveSeccompProfile(fileName string, content []byte) error {
	if !isJSON(content) {
		return &synthtypes.WriteError{Path: fileName, Err: errors.New("the seccomp profile is invalid in JSON format")}
	}
	return WriteFileAtomic(fileName, content, synthtypes.ProfileFileMode)
}

// WriteFileAtomic replaces the file through a synced temporary file, so
// readers see the old content or the new one and never a truncated file.
func WriteFileAtomic(fileName string, content []byte, mode os.FileMode) error {
	if err := renameio.WriteFile(fileName, content, mode, renameio.WithTempDir(filepath.Dir(fileName))); err != nil {
		return &synthtypes.WriteError{Path: fileName, Err: fmt.Errorf("renameio.WriteFile() failed: %w", err)}
	}
	return nil
}

func LoadSeccompProfile(fileName string) ([]byte, error) {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	if !isJSON(content) {
		return nil, fmt.Errorf("the seccomp profile %s is invalid in JSON format", fileName)
	}
	return content, nil
}

func RemoveSeccompProfile(profilePath string) error {
	err := os.Remove(profilePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
