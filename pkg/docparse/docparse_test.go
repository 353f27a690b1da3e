// Copyright 2025 Kadir Pekel
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

package docparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name, mime, want string
	}{
		{"notes.txt", "text/plain; charset=utf-8", KindText},
		{"upload.bin", "text/markdown", KindText},
		{"report.pdf", "", KindPDF},
		{"x", "application/pdf", KindPDF},
		{"letter.DOCX", "application/octet-stream", KindDOCX},
		{"sheet.xlsx", "", KindXLSX},
		{"image.png", "image/png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.name, tt.mime))
		})
	}
}

func TestExtract_Text(t *testing.T) {
	res, err := Extract(context.Background(), "a.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "hello", res.Content)

	_, err = Extract(context.Background(), "a.txt", "text/plain", []byte{0xff, 0xfe})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract(context.Background(), "photo.png", "image/png", []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestExtract_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Team"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Points"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Bayern"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 72))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := Extract(context.Background(), "table.xlsx", "", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, KindXLSX, res.Kind)
	assert.Contains(t, res.Content, "--- Sheet: Sheet1 ---")
	assert.Contains(t, res.Content, "A2: Bayern")
	assert.Contains(t, res.Content, "B2: 72")
	assert.Equal(t, "1", res.Metadata["sheets"])
}

func TestExtract_BrokenPDF(t *testing.T) {
	_, err := Extract(context.Background(), "broken.pdf", "application/pdf", []byte("not a pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}
