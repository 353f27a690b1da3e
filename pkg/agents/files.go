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

package agents

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/docparse"
	"github.com/kadirpekel/a2alab/pkg/fileserver"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
)

const (
	// DownloadName is the file the files agent publishes.
	DownloadName = "download.txt"

	updateSuffix = "\nI was updated\n"
	maxFetchSize = 10 << 20
)

// upload is the decoded content of an incoming file part.
type upload struct {
	name string
	mime string
	data []byte
}

// filesExecutor accepts one file, appends a marker line and publishes the
// result for download. Office and PDF documents are converted to text
// first.
type filesExecutor struct {
	canceler
	baseURL   string
	downloads *fileserver.Downloads
	http      *httpclient.Client
}

func (e filesExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	in, err := e.readUpload(ctx, reqCtx.Message)
	if err != nil {
		slog.Warn("File upload rejected", "task_id", reqCtx.TaskID, "error", err)
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed, err.Error()))
	}

	text, extracted, err := toText(ctx, in)
	if err != nil {
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed, err.Error()))
	}

	e.downloads.Put(DownloadName, []byte(text+updateSuffix), "text/plain")
	slog.Info("Download updated", "task_id", reqCtx.TaskID, "source", in.name, "bytes", len(text)+len(updateSuffix))

	if extracted != nil {
		ev := artifactEvent(reqCtx, "extracted.txt", a2a.TextPart{Text: extracted.Content})
		ev.Artifact.Description = "Text extracted from " + in.name
		ev.Artifact.Metadata = map[string]any{"kind": extracted.Kind}
		if err := queue.Write(ctx, ev); err != nil {
			return err
		}
	}

	out := a2a.FilePart{File: a2a.FileURI{
		FileMeta: a2a.FileMeta{Name: DownloadName, MimeType: "text/plain"},
		URI:      e.baseURL + "/" + DownloadName,
	}}
	if err := queue.Write(ctx, artifactEvent(reqCtx, DownloadName, out)); err != nil {
		return err
	}
	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, "Done."))
}

func (e filesExecutor) readUpload(ctx context.Context, msg *a2a.Message) (upload, error) {
	if msg != nil {
		for _, part := range msg.Parts {
			fp, ok := part.(a2a.FilePart)
			if !ok {
				continue
			}
			switch f := fp.File.(type) {
			case a2a.FileBytes:
				data, err := base64.StdEncoding.DecodeString(f.Bytes)
				if err != nil {
					return upload{}, fmt.Errorf("file bytes are not valid base64: %w", err)
				}
				return upload{name: f.Name, mime: f.MimeType, data: data}, nil
			case a2a.FileURI:
				data, err := e.fetch(ctx, f.URI)
				if err != nil {
					return upload{}, err
				}
				return upload{name: f.Name, mime: f.MimeType, data: data}, nil
			}
		}
	}
	return upload{}, errors.New("no file part found in message")
}

func (e filesExecutor) fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid file uri: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", uri, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	slog.Debug("Fetched file", "uri", uri, "bytes", len(data))
	return data, nil
}

// toText returns the upload as text. For documents that needed extraction
// the extraction result is returned as well.
func toText(ctx context.Context, in upload) (string, *docparse.Result, error) {
	res, err := docparse.Extract(ctx, in.name, in.mime, in.data)
	switch {
	case err == nil && res.Kind == docparse.KindText:
		return res.Content, nil, nil
	case err == nil:
		return res.Content, &res, nil
	case errors.Is(err, docparse.ErrUnsupported) && docparse.Kind(in.name, in.mime) == "" && utf8.Valid(in.data):
		return string(in.data), nil, nil
	default:
		return "", nil, fmt.Errorf("cannot read %s: %w", in.name, err)
	}
}

func newFiles(opts Options) (*Profile, error) {
	var card *a2a.AgentCard
	switch opts.FilesMode {
	case "", "bytes":
		card = newCard("06 FileExchange Bytes (REST)",
			"Client sends fileWithBytes, agent returns fileWithUri for download.",
			opts.version("0.6.0-demo"), false)
	case "uri":
		card = newCard("06 FileExchange URI Fetch (REST)",
			"Client sends fileWithUri, agent fetches and returns fileWithUri for download.",
			opts.version("0.6.0-demo"), false)
	default:
		return nil, fmt.Errorf("unknown files mode %q", opts.FilesMode)
	}

	client := opts.HTTPClient
	if client == nil {
		client = httpclient.New(
			httpclient.WithTimeout(10*time.Second),
			httpclient.WithMaxRetries(1),
			httpclient.WithBaseDelay(200*time.Millisecond),
		)
	}

	downloads := fileserver.NewDownloads()
	return &Profile{
		Name: ProfileFiles,
		Card: card,
		Executor: filesExecutor{
			canceler:  newCanceler(""),
			baseURL:   opts.BaseURL,
			downloads: downloads,
			http:      client,
		},
		PreferredTransport: config.TransportREST,
		Downloads:          downloads,
	}, nil
}
