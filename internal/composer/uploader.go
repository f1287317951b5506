package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPUploader は画像をストレージのアップロードエンドポイントへPOSTするUploader。
// エンドポイントは本文に画像バイナリを受け取り、{"url": "..."} を返す。
type HTTPUploader struct {
	Endpoint string
	Client   *http.Client
	Header   http.Header
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload は送信済みバイト数から進捗を計算してprogressへ送る。
func (u HTTPUploader) Upload(ctx context.Context, file File, progress chan<- int) (string, error) {
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	body := &progressReader{ctx: ctx, r: file.Body, total: file.Size, progress: progress, last: -1}
	defer body.stop()
	body.report()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = file.Size
	req.Header.Set("Content-Type", file.ContentType)
	req.Header.Set("X-File-Name", file.Name)
	for k, vs := range u.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload %s returned status %d", file.Name, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response for %s has no url", file.Name)
	}

	body.complete()
	return out.URL, nil
}

// progressReader は読み出したバイト数を数え、進捗が変わったときだけ送る。
// TransportはDoが戻った後も本文を読むことがあるため、stop以降は送信しない。
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	total    int64
	read     int64
	progress chan<- int

	mu      sync.Mutex
	last    int
	stopped bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	p.report()
	return n, err
}

func (p *progressReader) percent() int {
	if p.total <= 0 {
		return 0
	}
	pct := int(p.read * 100 / p.total)
	// 応答を受け取るまでは完了扱いにしない
	if pct >= 100 {
		pct = 99
	}
	return pct
}

func (p *progressReader) report() {
	p.send(p.percent())
}

func (p *progressReader) complete() {
	p.send(100)
}

func (p *progressReader) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *progressReader) send(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.progress == nil || pct == p.last {
		return
	}
	select {
	case p.progress <- pct:
		p.last = pct
	case <-p.ctx.Done():
	}
}
