/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadFile(t *testing.T) {
	tempDir := t.TempDir()
	testFilePath := filepath.Join(tempDir, "testfile.txt")
	testData := []byte("hello world")

	require.NoError(t, SaveFile(testFilePath, testData))
	assert.Equal(t, testData, LoadFile(testFilePath))
	assert.Nil(t, LoadFile(filepath.Join(tempDir, "nonexistent.txt")))

	// SaveFile does not create directories
	assert.Error(t, SaveFile(filepath.Join(tempDir, "missing", "a.txt"), testData))
}

func TestIsExist(t *testing.T) {
	tempDir := t.TempDir()
	testFilePath := filepath.Join(tempDir, "exists.txt")

	assert.False(t, IsExist(testFilePath))
	file, err := os.Create(testFilePath)
	require.NoError(t, err)
	_ = file.Close()

	assert.True(t, IsExist(testFilePath))
	assert.True(t, IsExist(tempDir))
	assert.False(t, IsExist(filepath.Join(tempDir, "nonexistentdir")))
}

func TestGetFilePaths(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "skip"), 0755))
	for _, name := range []string{"a.yaml", "b.json", "sub/c.yaml", "skip/d.yaml", "a_test.yaml"} {
		require.NoError(t, SaveFile(filepath.Join(tempDir, name), []byte("x")))
	}

	paths, err := GetFilePaths(filepath.Join(tempDir, "*.yaml"), "skip", "*_test.yaml")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(tempDir, "a.yaml"),
		filepath.Join(tempDir, "sub", "c.yaml"),
	}, paths)

	_, err = GetFilePaths(filepath.Join(tempDir, "missing", "*.yaml"))
	assert.Error(t, err)
}
