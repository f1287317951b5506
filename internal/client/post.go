package client

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hitoshi/socialhub/internal/composer"
	"github.com/hitoshi/socialhub/internal/model"
)

// ErrNotReady は投稿できる状態にならなかった場合のエラー。
var ErrNotReady = errors.New("post is not ready to be shared")

// imageList は -image を複数回指定できるフラグ。
type imageList []string

func (l *imageList) String() string     { return strings.Join(*l, ",") }
func (l *imageList) Set(v string) error { *l = append(*l, v); return nil }

// pathPicker はコマンドラインで指定されたパスを選択済みファイルとして返す。
type pathPicker struct {
	paths []string

	mu    sync.Mutex
	files []*os.File
}

func (p *pathPicker) Pick(ctx context.Context) ([]composer.File, error) {
	out := make([]composer.File, 0, len(p.paths))
	for _, path := range p.paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.files = append(p.files, f)
		p.mu.Unlock()

		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		contentType, err := detectContentType(f)
		if err != nil {
			return nil, err
		}
		out = append(out, composer.File{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Size:        info.Size(),
			Body:        f,
		})
	}
	return out, nil
}

func (p *pathPicker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.files {
		f.Close()
	}
	p.files = nil
}

// detectContentType は拡張子から、判別できなければ先頭512バイトから種別を決める。
// 読み取り位置は先頭に戻す。
func detectContentType(f *os.File) (string, error) {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name()))); ct != "" {
		return ct, nil
	}
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// terminalNotifier はトーストを端末へ出力する。
type terminalNotifier struct {
	w io.Writer
}

func (n terminalNotifier) Success(msg string) { fmt.Fprintln(n.w, msg) }
func (n terminalNotifier) Error(msg string)   { fmt.Fprintln(n.w, "error:", msg) }

// terminalNavigator は遷移先のURLを表示する。
type terminalNavigator struct {
	w       io.Writer
	baseURL string
}

func (n terminalNavigator) Navigate(path string) { fmt.Fprintln(n.w, n.baseURL+path) }

// postOptions は post サブコマンドの引数。
type postOptions struct {
	visibility string
	community  string
	images     []string
	content    string
}

// parsePostArgs は post サブコマンドの引数を解析する。
//
//	socialhubctl post [-visibility v] [-community c] [-image path]... content
func parsePostArgs(args []string, stderr io.Writer) (*postOptions, error) {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	fs.SetOutput(stderr)
	visibility := fs.String("visibility", string(model.VisibilityEveryone), `"everyone" or "only me"`)
	community := fs.String("community", model.DefaultCommunity, "community to post in")
	var images imageList
	fs.Var(&images, "image", "image file to attach (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	return &postOptions{
		visibility: *visibility,
		community:  *community,
		images:     images,
		content:    strings.Join(fs.Args(), " "),
	}, nil
}

// runPost は本文と画像から投稿を作成する。
func runPost(ctx context.Context, cfg *Config, conn *Conn, out io.Writer, opts *postOptions) error {
	images := opts.images
	picker := &pathPicker{paths: images}
	defer picker.Close()

	// OnChangeは並行に届くため、Seqが古いスナップショットは捨てる
	var progressMu sync.Mutex
	var lastSeq uint64
	lastProgress := -1
	c := composer.New(ctx, composer.Options{
		// アップロード先は外部ストレージのため、セッションCookieは送らない
		Uploader: composer.HTTPUploader{
			Endpoint: cfg.UploadURL,
			Client:   conn.HTTP,
		},
		Submitter:  composer.RPCSubmitter{Client: conn.RPC},
		Notifier:   terminalNotifier{w: out},
		Navigator:  terminalNavigator{w: out, baseURL: conn.BaseURL},
		FilePicker: picker,
		OnChange: func(s composer.Snapshot) {
			progressMu.Lock()
			defer progressMu.Unlock()
			if s.Seq <= lastSeq {
				return
			}
			lastSeq = s.Seq
			if s.State == composer.StateUploading && s.Progress != lastProgress {
				lastProgress = s.Progress
				fmt.Fprintf(out, "uploading... %d%%\n", s.Progress)
			}
		},
	})
	defer c.Abandon()

	c.SetContent(opts.content)
	if err := c.SetVisibility(model.Visibility(opts.visibility)); err != nil {
		return err
	}
	if err := c.SetCommunity(opts.community); err != nil {
		return err
	}

	if len(images) > 0 {
		if cfg.UploadURL == "" {
			return errors.New("upload_url is required to attach images")
		}
		if err := c.OpenFilePicker(ctx); err != nil {
			return err
		}
		c.Wait()
		if got := len(c.Snapshot().Attachments); got != len(images) {
			return fmt.Errorf("%d of %d images failed to upload", len(images)-got, len(images))
		}
	}

	if !c.SubmitEnabled() {
		return ErrNotReady
	}
	return c.Submit(ctx)
}
