// Package composer は投稿作成フォームの状態を管理する。
//
// 本文、添付画像、アップロード進捗、送信可否を1つの状態機械で扱う。
// アップロードはファイルごとにgoroutineで並行に行い、進捗はチャネルで受け取る。
package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/model"
)

// State はフォームの状態。
type State string

const (
	StateIdle       State = "idle"
	StateEditing    State = "editing"
	StateUploading  State = "uploading"
	StateSubmitting State = "submitting"
	StateError      State = "error"
)

const (
	// MaxFileBytes は添付できる画像1枚あたりの上限サイズ。
	MaxFileBytes int64 = 10 << 20
	// SuccessMessage は投稿成功時に表示する通知文。
	SuccessMessage = "Your post was added successfully"
	// HomePath は投稿成功後の遷移先。
	HomePath = "/"
)

var (
	ErrUnsupportedType = errors.New("only image files can be attached")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrTooManyFiles    = errors.New("too many attachments")
	ErrBusy            = errors.New("post is being submitted")
	ErrNoFilePicker    = errors.New("file picker is not available")
)

// File はユーザーが選択した添付ファイル。
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader は画像をストレージへ送り、公開URLを返す。
// 進捗（0〜100）はprogressへ送る。戻った後にprogressへ送ってはならない。
type Uploader interface {
	Upload(ctx context.Context, file File, progress chan<- int) (string, error)
}

// Submitter は確定した投稿をサーバーへ送る。
type Submitter interface {
	Submit(ctx context.Context, input api.CreatePostInput) error
}

// Notifier は一時的な通知（トースト）を表示する。
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Navigator は画面遷移を行う。
type Navigator interface {
	Navigate(path string)
}

// FilePicker はネイティブのファイル選択ダイアログを開く。
type FilePicker interface {
	Pick(ctx context.Context) ([]File, error)
}

// Options はComposerの依存と設定。
// Notifier、Navigator、OnChangeは省略できる。
type Options struct {
	Uploader     Uploader
	Submitter    Submitter
	Notifier     Notifier
	Navigator    Navigator
	FilePicker   FilePicker
	MaxFileBytes int64
	// OnChange は状態が変わるたびにロック外で呼ばれる。
	// アップロードごとのゴルーチンから並行に呼ばれるため、到着順は変更順と一致しない。
	// 順序が必要な場合はSnapshot.Seqが最大のものだけを採用する。
	OnChange func(Snapshot)
}

// Attachment は添付ファイルの状態。
type Attachment struct {
	ID          int
	Name        string
	ContentType string
	Size        int64
	Progress    int
	URL         string
	Uploaded    bool
}

// Snapshot はある時点のフォーム状態のコピー。
// Seq は状態が変わるたびに1ずつ増える通し番号。
type Snapshot struct {
	Seq           uint64
	State         State
	Content       string
	Visibility    model.Visibility
	Community     string
	Attachments   []Attachment
	Progress      int
	SubmitEnabled bool
}

// Composer は投稿作成フォームの状態機械。並行に呼び出して安全。
type Composer struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	content     string
	visibility  model.Visibility
	community   string
	attachments []*Attachment
	batch       []*Attachment // 進捗集約の対象となる現在のバッチ
	pending     int
	nextID      int
	abandoned   bool
	seq         uint64
}

// New はComposerを生成する。ctxがキャンセルされると進行中のアップロードも中断する。
func New(ctx context.Context, opts Options) *Composer {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = MaxFileBytes
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Navigator == nil {
		opts.Navigator = nopNavigator{}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Composer{
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		visibility: model.VisibilityEveryone,
		community:  model.DefaultCommunity,
	}
}

// SetContent は本文入力を反映する。最初の入力でidleからeditingへ遷移する。
func (c *Composer) SetContent(content string) {
	c.mu.Lock()
	c.content = content
	if c.state == StateIdle {
		c.state = StateEditing
	}
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
}

// SetVisibility は公開範囲を設定する。
func (c *Composer) SetVisibility(v model.Visibility) error {
	if !v.Valid() {
		return model.NewInvalidVisibilityError(string(v))
	}
	c.mu.Lock()
	c.visibility = v
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	return nil
}

// SetCommunity は投稿先コミュニティを設定する。
func (c *Composer) SetCommunity(name string) error {
	if !model.ValidCommunity(name) {
		return model.NewInvalidCommunityError(name)
	}
	c.mu.Lock()
	c.community = name
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	return nil
}

// SetFiles はファイルを添付してアップロードを開始する。
// 1つでも条件を満たさないファイルがあれば何も添付せずエラーを返す。
func (c *Composer) SetFiles(files []File) error {
	if len(files) == 0 {
		return nil
	}

	c.mu.Lock()
	if err := c.validateLocked(files); err != nil {
		c.mu.Unlock()
		c.opts.Notifier.Error(err.Error())
		return err
	}

	// アップロード中でなければ新しいバッチを始める
	if c.pending == 0 {
		c.batch = nil
	}
	started := make([]*Attachment, 0, len(files))
	for _, f := range files {
		c.nextID++
		a := &Attachment{
			ID:          c.nextID,
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        f.Size,
		}
		c.attachments = append(c.attachments, a)
		c.batch = append(c.batch, a)
		started = append(started, a)
	}
	c.pending += len(files)
	c.state = StateUploading
	snap := c.nextSnapshotLocked()
	c.wg.Add(len(files))
	c.mu.Unlock()

	c.changed(snap)
	for i, a := range started {
		c.startUpload(a, files[i])
	}
	return nil
}

// Drop はドラッグ＆ドロップされたファイルを添付する。SetFilesと同じ経路を通る。
func (c *Composer) Drop(files []File) error {
	return c.SetFiles(files)
}

// OpenFilePicker はファイル選択ダイアログを開き、選ばれたファイルを添付する。
// 何も選ばれなかった場合は何もしない。
func (c *Composer) OpenFilePicker(ctx context.Context) error {
	if c.opts.FilePicker == nil {
		return ErrNoFilePicker
	}
	files, err := c.opts.FilePicker.Pick(ctx)
	if err != nil {
		return fmt.Errorf("failed to pick files: %w", err)
	}
	return c.SetFiles(files)
}

func (c *Composer) validateLocked(files []File) error {
	if c.state == StateSubmitting {
		return ErrBusy
	}
	if len(c.attachments)+len(files) > model.MaxPostImages {
		return fmt.Errorf("%w: up to %d images", ErrTooManyFiles, model.MaxPostImages)
	}
	for _, f := range files {
		if !strings.HasPrefix(f.ContentType, "image/") {
			return fmt.Errorf("%s: %w", f.Name, ErrUnsupportedType)
		}
		if f.Size > c.opts.MaxFileBytes {
			return fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
		}
	}
	return nil
}

// startUpload は1ファイルのアップロードと進捗の受信を開始する。
func (c *Composer) startUpload(a *Attachment, f File) {
	progress := make(chan int)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for p := range progress {
			c.setProgress(a, p)
		}
	}()

	go func() {
		defer c.wg.Done()
		url, err := c.opts.Uploader.Upload(c.ctx, f, progress)
		close(progress)
		<-drained
		c.finishUpload(a, url, err)
	}()
}

func (c *Composer) setProgress(a *Attachment, p int) {
	c.mu.Lock()
	if a.Uploaded || c.abandoned {
		c.mu.Unlock()
		return
	}
	a.Progress = clampPercent(p)
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
}

func (c *Composer) finishUpload(a *Attachment, url string, err error) {
	c.mu.Lock()
	c.pending--
	if c.abandoned {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.attachments = removeAttachment(c.attachments, a)
		c.batch = removeAttachment(c.batch, a)
	} else {
		a.URL = url
		a.Uploaded = true
		a.Progress = 100
	}
	if c.pending == 0 && c.state == StateUploading {
		c.state = StateEditing
	}
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	if err != nil {
		c.opts.Notifier.Error(fmt.Sprintf("Failed to upload %s", a.Name))
	}
}

func removeAttachment(list []*Attachment, target *Attachment) []*Attachment {
	out := list[:0]
	for _, a := range list {
		if a != target {
			out = append(out, a)
		}
	}
	return out
}

// Progress は現在のバッチの集約進捗を返す。
func (c *Composer) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

func (c *Composer) progressLocked() int {
	values := make([]int, len(c.batch))
	for i, a := range c.batch {
		values[i] = a.Progress
	}
	return AggregateProgress(values...)
}

// SubmitEnabled は本文が有効かつアップロード中のファイルがない場合にtrueを返す。
func (c *Composer) SubmitEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitEnabledLocked()
}

func (c *Composer) submitEnabledLocked() bool {
	if c.abandoned || c.state == StateSubmitting {
		return false
	}
	return c.pending == 0 && model.ValidPostContent(c.content)
}

// Submit は投稿を送信する。送信できない状態で呼ばれた場合は何もせずnilを返す。
// 成功時は下書きを破棄して通知を出し、ホームへ遷移する。
// 失敗時は下書きを保持したままeditingへ戻り、エラーを返す。
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	if !c.submitEnabledLocked() {
		c.mu.Unlock()
		return nil
	}
	input := c.draftLocked()
	c.state = StateSubmitting
	snap := c.nextSnapshotLocked()
	c.mu.Unlock()
	c.changed(snap)

	if err := c.opts.Submitter.Submit(ctx, input); err != nil {
		c.mu.Lock()
		c.state = StateError
		snap = c.nextSnapshotLocked()
		c.mu.Unlock()
		c.changed(snap)

		c.opts.Notifier.Error(errorMessage(err))

		c.mu.Lock()
		c.state = StateEditing
		snap = c.nextSnapshotLocked()
		c.mu.Unlock()
		c.changed(snap)
		return err
	}

	c.mu.Lock()
	c.resetLocked()
	snap = c.nextSnapshotLocked()
	c.mu.Unlock()
	c.changed(snap)

	c.opts.Notifier.Success(SuccessMessage)
	c.opts.Navigator.Navigate(HomePath)
	return nil
}

func (c *Composer) draftLocked() api.CreatePostInput {
	urls := make([]string, 0, len(c.attachments))
	for _, a := range c.attachments {
		urls = append(urls, a.URL)
	}
	return api.CreatePostInput{
		Content:    strings.TrimSpace(c.content),
		Visibility: string(c.visibility),
		Community:  c.community,
		ImageURLs:  urls,
	}
}

func (c *Composer) resetLocked() {
	c.state = StateIdle
	c.content = ""
	c.visibility = model.VisibilityEveryone
	c.community = model.DefaultCommunity
	c.attachments = nil
	c.batch = nil
}

// Abandon は画面離脱時に呼ぶ。進行中のアップロードをキャンセルし、以降の状態変化を通知しない。
// サーバーへの取消要求は送らない。
func (c *Composer) Abandon() {
	c.mu.Lock()
	c.abandoned = true
	c.mu.Unlock()
	c.cancel()
}

// Wait は開始済みの全アップロードの終了を待つ。
func (c *Composer) Wait() {
	c.wg.Wait()
}

// Snapshot は現在の状態のコピーを返す。
func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// nextSnapshotLocked は状態の変更を記録し、新しい通し番号のスナップショットを返す。
func (c *Composer) nextSnapshotLocked() Snapshot {
	c.seq++
	return c.snapshotLocked()
}

func (c *Composer) snapshotLocked() Snapshot {
	attachments := make([]Attachment, len(c.attachments))
	for i, a := range c.attachments {
		attachments[i] = *a
	}
	return Snapshot{
		Seq:           c.seq,
		State:         c.state,
		Content:       c.content,
		Visibility:    c.visibility,
		Community:     c.community,
		Attachments:   attachments,
		Progress:      c.progressLocked(),
		SubmitEnabled: c.submitEnabledLocked(),
	}
}

func (c *Composer) changed(snap Snapshot) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string) {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
