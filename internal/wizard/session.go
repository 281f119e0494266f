package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/intake"
	"github.com/dharsanguruparan/VaultAI/internal/mint"
	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/submission"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
)

var (
	ErrValidation           = errors.New("stage requirements not met")
	ErrBusy                 = errors.New("another operation is pending for this draft")
	ErrDiscarded            = errors.New("draft was discarded")
	ErrWrongStage           = errors.New("operation not allowed at this stage")
	ErrVerificationRequired = errors.New("run verification to leave the upload stage")
	ErrMintRequired         = errors.New("mint the vault to leave the review stage")
	ErrComplete             = errors.New("wizard is complete")
	ErrNoContent            = errors.New("file content is no longer available")
	ErrAborted              = errors.New("operation aborted before it ran")
)

// Operation names reported while an async step is in flight.
const (
	OpVerify   = "verify"
	OpMint     = "mint"
	OpFinalize = "finalize"
)

// Deps are the collaborators a Session calls out to. Persisted, when set,
// is called once after the asset record has been stored.
type Deps struct {
	Verifier  verification.Verifier
	Minter    mint.Minter
	Activity  storage.ActivityLog
	Persisted func(ctx context.Context, rec model.AssetRecord)
	Logger    *zap.Logger
}

// Session owns one SubmissionDraft. All methods are safe for concurrent use;
// at most one verify, mint or finalize may be pending at a time.
type Session struct {
	deps Deps
	log  *zap.Logger

	mu        sync.Mutex
	draft     *model.SubmissionDraft
	pending   string
	cancel    context.CancelFunc
	discarded bool
	lastFault string
	record    *model.AssetRecord
	touched   time.Time
}

// View is a read-only snapshot of a session.
type View struct {
	Draft     *model.SubmissionDraft `json:"draft"`
	StageName string                 `json:"stageName"`
	Pending   string                 `json:"pending,omitempty"`
	LastFault string                 `json:"lastFault,omitempty"`
	Record    *model.AssetRecord     `json:"record,omitempty"`
}

// NewSession opens a draft at the details stage.
func NewSession(id, owner string, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	now := time.Now().UTC()
	s := &Session{
		deps: deps,
		log:  deps.Logger.With(zap.String("draft_id", id)),
		draft: &model.SubmissionDraft{
			ID:        id,
			Owner:     owner,
			Stage:     model.StageDetails,
			Errors:    map[string]string{},
			CreatedAt: now,
			UpdatedAt: now,
		},
		touched: now,
	}
	s.activity(context.Background(), model.ActivityVaultCreated, model.ActivityPending, "draft opened")
	return s
}

// ID returns the draft id.
func (s *Session) ID() string {
	return s.draft.ID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Draft:     s.draft.Clone(),
		StageName: s.draft.Stage.String(),
		Pending:   s.pending,
		LastFault: s.lastFault,
	}
	if s.record != nil {
		rec := *s.record
		v.Record = &rec
	}
	return v
}

// LastTouched returns when the session was last used.
func (s *Session) LastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Busy reports whether an async step is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != ""
}

// SetAssetType selects the asset type.
func (s *Session) SetAssetType(value string) error {
	return s.edit(FieldAssetType, func(d *model.SubmissionDraft) error {
		t, err := model.ParseAssetType(value)
		if err != nil {
			d.Errors[FieldAssetType] = MsgAssetType
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		d.AssetType = t
		return nil
	})
}

// SetAssetName sets the asset name.
func (s *Session) SetAssetName(value string) error {
	return s.edit(FieldAssetName, func(d *model.SubmissionDraft) error {
		d.AssetName = value
		return nil
	})
}

// SetAssetDescription sets the asset description.
func (s *Session) SetAssetDescription(value string) error {
	return s.edit(FieldAssetDescription, func(d *model.SubmissionDraft) error {
		d.AssetDescription = value
		return nil
	})
}

func (s *Session) edit(field string, apply func(*model.SubmissionDraft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.draft.Stage != model.StageDetails {
		return fmt.Errorf("edit %s at %s: %w", field, s.draft.Stage, ErrWrongStage)
	}
	delete(s.draft.Errors, field)
	if err := apply(s.draft); err != nil {
		return err
	}
	s.touch()
	return nil
}

// AddFiles validates candidates and appends the accepted ones to the draft.
// Rejected candidates are reported per file.
func (s *Session) AddFiles(ctx context.Context, candidates []intake.Candidate) (intake.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return intake.Outcome{}, err
	}
	if s.draft.Stage != model.StageUpload {
		return intake.Outcome{}, fmt.Errorf("add files at %s: %w", s.draft.Stage, ErrWrongStage)
	}
	out := intake.Validate(candidates)
	s.draft.Files = intake.Append(s.draft.Files, out.Accepted)
	delete(s.draft.Errors, FieldFiles)
	s.touch()
	if len(out.Accepted) > 0 {
		s.activity(ctx, model.ActivityDocumentsUploaded, model.ActivityCompleted,
			fmt.Sprintf("%d accepted, %d rejected", len(out.Accepted), out.RejectedCount()))
	}
	for _, r := range out.Rejected {
		s.log.Info("upload rejected", zap.String("file", r.Name), zap.String("reason", r.Reason))
	}
	return out, nil
}

// RemoveFile drops the accepted file at index.
func (s *Session) RemoveFile(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.draft.Stage != model.StageUpload {
		return fmt.Errorf("remove file at %s: %w", s.draft.Stage, ErrWrongStage)
	}
	files, err := intake.Remove(s.draft.Files, index)
	if err != nil {
		return err
	}
	s.draft.Files = files
	s.touch()
	return nil
}

// Advance moves forward when the current stage's gate passes. Leaving the
// upload and review stages is done by Verify and Mint, so a passing gate
// there reports which operation is still required.
func (s *Session) Advance() (model.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return s.draft.Stage, err
	}
	stage := s.draft.Stage
	if stage == model.StageComplete {
		return stage, ErrComplete
	}
	next := Advance(stage, s.draft)
	s.touch()
	if next == stage {
		if stage == model.StageReview {
			return stage, ErrMintRequired
		}
		return stage, ErrValidation
	}
	if stage == model.StageUpload {
		return stage, ErrVerificationRequired
	}
	s.draft.Stage = next
	return next, nil
}

// Retreat moves back one stage without re-validating. Entered values are
// kept; stepping back from review drops the verification result because the
// evidence may change before the next verification.
func (s *Session) Retreat() (model.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return s.draft.Stage, err
	}
	if s.draft.Stage == model.StageComplete {
		return s.draft.Stage, ErrComplete
	}
	if s.draft.Stage == model.StageReview {
		s.draft.Verification = nil
	}
	s.draft.Stage = Retreat(s.draft.Stage)
	s.touch()
	return s.draft.Stage, nil
}

// Operation is a verify or mint step that has passed its checks and holds
// the draft's busy flag. Exactly one of Run or Abort takes effect.
type Operation struct {
	Name  string
	once  sync.Once
	run   func() error
	abort func()
	err   error
}

// Run performs the step and commits its result.
func (o *Operation) Run() error {
	o.once.Do(func() { o.err = o.run() })
	return o.err
}

// Abort releases the busy flag without running the step.
func (o *Operation) Abort() {
	o.once.Do(func() {
		o.abort()
		o.err = ErrAborted
	})
}

// Verify runs the verifier over the accepted files. On success the result
// and the move to the review stage are committed together; on failure the
// draft is left as it was and the call may be retried.
func (s *Session) Verify(ctx context.Context) (model.VerificationResult, error) {
	var res model.VerificationResult
	op, err := s.beginVerify(ctx, &res)
	if err != nil {
		return model.VerificationResult{}, err
	}
	if err := op.Run(); err != nil {
		return model.VerificationResult{}, err
	}
	return res, nil
}

// BeginVerify checks that verification may start and marks the draft busy.
// The returned Operation is run later, typically on a worker.
func (s *Session) BeginVerify(ctx context.Context) (*Operation, error) {
	return s.beginVerify(ctx, nil)
}

func (s *Session) beginVerify(ctx context.Context, out *model.VerificationResult) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.draft.Stage != model.StageUpload {
		return nil, fmt.Errorf("verify at %s: %w", s.draft.Stage, ErrWrongStage)
	}
	if errs := Validate(model.StageUpload, s.draft); len(errs) > 0 {
		s.draft.Errors = errs
		return nil, ErrValidation
	}
	files := append([]model.AcceptedFile(nil), s.draft.Files...)
	opCtx := s.begin(ctx, OpVerify)

	op := &Operation{Name: OpVerify, abort: s.release}
	op.run = func() error {
		s.log.Info("verification started", zap.Int("files", len(files)))
		res, err := s.deps.Verifier.Verify(opCtx, files)
		if err := s.commitVerify(ctx, res, err); err != nil {
			return err
		}
		if out != nil {
			*out = res
		}
		return nil
	}
	return op, nil
}

func (s *Session) commitVerify(ctx context.Context, res model.VerificationResult, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr := s.finish(); ferr != nil {
		return ferr
	}
	if err != nil {
		s.fault(OpVerify, err)
		s.activity(ctx, model.ActivityVerificationFailed, model.ActivityFailed, err.Error())
		return fmt.Errorf("verify draft %s: %w", s.draft.ID, err)
	}
	s.draft.Verification = &res
	s.draft.Stage = model.StageReview
	s.draft.Errors = map[string]string{}
	s.lastFault = ""
	s.touch()
	s.log.Info("verification completed", zap.Int("score", res.Score), zap.String("status", res.Status))
	s.activity(ctx, model.ActivityVerification, model.ActivityCompleted,
		fmt.Sprintf("score %d (%s)", res.Score, res.Status))
	return nil
}

// Mint issues the token for a verified draft and completes the wizard.
// Minting without a verification result is a programming error and is
// refused with mint.ErrNotVerified.
func (s *Session) Mint(ctx context.Context) (model.MintResult, error) {
	var res model.MintResult
	op, err := s.beginMint(ctx, &res)
	if err != nil {
		return model.MintResult{}, err
	}
	if err := op.Run(); err != nil {
		return model.MintResult{}, err
	}
	return res, nil
}

// BeginMint checks that minting may start and marks the draft busy.
func (s *Session) BeginMint(ctx context.Context) (*Operation, error) {
	return s.beginMint(ctx, nil)
}

func (s *Session) beginMint(ctx context.Context, out *model.MintResult) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.draft.Verification == nil {
		s.log.Error("mint requested without verification")
		return nil, mint.ErrNotVerified
	}
	if s.draft.Stage != model.StageReview {
		return nil, fmt.Errorf("mint at %s: %w", s.draft.Stage, ErrWrongStage)
	}
	verified := *s.draft.Verification
	id := s.draft.ID
	opCtx := s.begin(ctx, OpMint)

	op := &Operation{Name: OpMint, abort: s.release}
	op.run = func() error {
		s.log.Info("mint started")
		res, err := s.deps.Minter.Mint(opCtx, id, verified)
		if err := s.commitMint(ctx, res, err); err != nil {
			return err
		}
		if out != nil {
			*out = res
		}
		return nil
	}
	return op, nil
}

func (s *Session) commitMint(ctx context.Context, res model.MintResult, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr := s.finish(); ferr != nil {
		// Discard already ran; drop what the minter remembered since.
		s.forgetMint()
		return ferr
	}
	if err != nil {
		s.fault(OpMint, err)
		return fmt.Errorf("mint draft %s: %w", s.draft.ID, err)
	}
	s.draft.Mint = &res
	s.draft.Stage = model.StageComplete
	s.draft.Errors = map[string]string{}
	s.lastFault = ""
	s.touch()
	s.log.Info("mint completed", zap.String("token_id", res.TokenID))
	s.activity(ctx, model.ActivityVaultMinted, model.ActivityCompleted, "token "+res.TokenID)
	return nil
}

// Finalize stores the representative file and persists the asset record.
// It may be called again after success and returns the same record. Once
// the record is stored it is kept and returned even if the draft was
// discarded while the upload ran.
func (s *Session) Finalize(ctx context.Context, files storage.FileStore, assets storage.AssetStore) (*model.AssetRecord, error) {
	s.mu.Lock()
	if s.record != nil {
		rec := *s.record
		s.mu.Unlock()
		return &rec, nil
	}
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.draft.Mint == nil {
		s.mu.Unlock()
		s.log.Error("finalize requested before mint")
		return nil, submission.ErrNotMinted
	}
	draft := s.draft.Clone()
	opCtx := s.begin(ctx, OpFinalize)
	s.mu.Unlock()

	rec, err := persist(opCtx, draft, files, assets)

	s.mu.Lock()
	discarded := s.finish()
	if err != nil {
		if discarded == nil {
			s.fault(OpFinalize, err)
		}
		s.mu.Unlock()
		if discarded != nil {
			return nil, discarded
		}
		return nil, err
	}
	s.record = rec
	s.lastFault = ""
	s.touch()
	s.forgetMint()
	s.mu.Unlock()

	s.log.Info("asset persisted", zap.String("asset_id", rec.ID), zap.Bool("discarded", discarded != nil))
	s.activityFor(ctx, model.Activity{
		Type:    model.ActivityVaultCreated,
		Status:  model.ActivityCompleted,
		DraftID: draft.ID,
		AssetID: rec.ID,
		Detail:  draft.AssetName,
	})
	if s.deps.Persisted != nil {
		s.deps.Persisted(context.WithoutCancel(ctx), *rec)
	}
	out := *rec
	return &out, nil
}

func persist(ctx context.Context, draft *model.SubmissionDraft, files storage.FileStore, assets storage.AssetStore) (*model.AssetRecord, error) {
	f, err := submission.RepresentativeFile(draft.Files)
	if err != nil {
		return nil, err
	}
	if f.Content == nil {
		return nil, fmt.Errorf("upload %s: %w", f.Name, ErrNoContent)
	}
	key := submission.ObjectKey(draft.ID, f)
	url, err := files.Put(ctx, key, io.NewSectionReader(f.Content, 0, f.SizeBytes), f.SizeBytes, f.MimeType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	rec, err := submission.Finalize(draft, url)
	if err != nil {
		return nil, err
	}
	rec.ObjectKey = key
	if err := assets.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("store asset: %w", err)
	}
	return &rec, nil
}

// Discard abandons the draft. A pending operation is cancelled and its
// eventual result ignored.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.discarded = true
	if s.cancel != nil {
		s.cancel()
	}
	s.forgetMint()
	// Content handles are only borrowed for the session's lifetime.
	for i := range s.draft.Files {
		s.draft.Files[i].Content = nil
	}
	s.log.Info("draft discarded", zap.String("stage", s.draft.Stage.String()))
}

// usable must be called with mu held.
func (s *Session) usable() error {
	if s.discarded {
		return ErrDiscarded
	}
	if s.pending != "" {
		return fmt.Errorf("%s pending: %w", s.pending, ErrBusy)
	}
	return nil
}

// begin must be called with mu held.
func (s *Session) begin(ctx context.Context, op string) context.Context {
	opCtx, cancel := context.WithCancel(ctx)
	s.pending = op
	s.cancel = cancel
	s.touch()
	return opCtx
}

// finish must be called with mu held. It releases the busy flag and reports
// ErrDiscarded when the draft was abandoned while the operation ran.
func (s *Session) finish() error {
	s.pending = ""
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.discarded {
		return ErrDiscarded
	}
	return nil
}

// release drops the busy flag for an operation that never ran.
func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.finish()
	s.touch()
}

// forgetMint tells a minter that remembers issued tokens per draft that
// this draft is done with.
func (s *Session) forgetMint() {
	if f, ok := s.deps.Minter.(mint.Forgetter); ok {
		f.Forget(s.draft.ID)
	}
}

func (s *Session) fault(op string, err error) {
	s.lastFault = fmt.Sprintf("%s failed: %v", op, err)
	s.touch()
	s.log.Warn("operation failed", zap.String("op", op), zap.Error(err))
}

func (s *Session) touch() {
	now := time.Now().UTC()
	s.touched = now
	s.draft.UpdatedAt = now
}

func (s *Session) activity(ctx context.Context, typ model.ActivityType, status model.ActivityStatus, detail string) {
	s.activityFor(ctx, model.Activity{Type: typ, Status: status, DraftID: s.draft.ID, Detail: detail})
}

func (s *Session) activityFor(ctx context.Context, a model.Activity) {
	if s.deps.Activity == nil {
		return
	}
	if err := s.deps.Activity.Record(context.WithoutCancel(ctx), &a); err != nil {
		s.log.Warn("record activity", zap.Error(err))
	}
}
