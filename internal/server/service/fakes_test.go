package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"secureshare/internal/server/database"
	"secureshare/internal/server/scanner"
)

// fakeRepo is an in-memory repository double covering every store
// interface the services consume.
type fakeRepo struct {
	mu sync.Mutex

	users    map[string]*database.User
	members  map[string]map[string]bool // teamID -> userID set
	files    map[string]*database.File
	shares   map[string]*database.Share // by ID
	byToken  map[string]*database.Share
	scans    map[string]*database.ScanResult
	attempts []*database.MalwareAttempt

	quarantines   []*database.Quarantine
	downloads     []*database.Download
	notifications []*database.Notification
	profileDeltas []database.ProfileDelta
	banEvents     []string // reasons

	// When set, CreateFile reports a hash collision the way the
	// partial unique index does when a concurrent upload won the race.
	dupOnCreate bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   make(map[string]*database.User),
		members: make(map[string]map[string]bool),
		files:   make(map[string]*database.File),
		shares:  make(map[string]*database.Share),
		byToken: make(map[string]*database.Share),
		scans:   make(map[string]*database.ScanResult),
	}
}

func (r *fakeRepo) addUser(id string) *database.User {
	u := &database.User{ID: id, AccountStatus: database.AccountActive}
	r.users[id] = u
	return u
}

func (r *fakeRepo) addFile(f *database.File) *database.File {
	r.files[f.ID] = f
	return f
}

func (r *fakeRepo) GetUserByID(ctx context.Context, id string) (*database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) EnsureUser(ctx context.Context, id, email, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		r.users[id] = &database.User{ID: id, AccountStatus: database.AccountActive}
	}
	return nil
}

func (r *fakeRepo) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[teamID][userID], nil
}

func (r *fakeRepo) FindFileByHash(ctx context.Context, hash, ownerID string, teamID *string) (*database.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.Hash != hash || f.Status == database.FileDeleted {
			continue
		}
		if teamID != nil {
			if f.TeamID != nil && *f.TeamID == *teamID {
				return f, nil
			}
			continue
		}
		if f.TeamID == nil && f.OwnerID == ownerID {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) CreateFile(ctx context.Context, f *database.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dupOnCreate {
		return database.ErrDuplicateHash
	}
	r.files[f.ID] = f
	return nil
}

func (r *fakeRepo) GetFileByID(ctx context.Context, id string) (*database.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, database.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeRepo) TransitionFileStatus(ctx context.Context, id string, to database.FileStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return database.ErrFileNotFound
	}
	if !database.CanTransition(f.Status, to) {
		return database.ErrInvalidTransition
	}
	f.Status = to
	return nil
}

func (r *fakeRepo) CreateQuarantine(ctx context.Context, q *database.Quarantine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quarantines = append(r.quarantines, q)
	return nil
}

func (r *fakeRepo) RecordMalwareAttempt(ctx context.Context, a *database.MalwareAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *fakeRepo) BanUser(ctx context.Context, userID, reason, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return database.ErrUserNotFound
	}
	if u.AccountStatus != database.AccountBanned {
		u.AccountStatus = database.AccountBanned
		u.BannedReason = &reason
		r.banEvents = append(r.banEvents, reason)
	}
	return nil
}

func (r *fakeRepo) BumpProfile(ctx context.Context, userID string, d database.ProfileDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profileDeltas = append(r.profileDeltas, d)
	return nil
}

func (r *fakeRepo) CreateShare(ctx context.Context, s *database.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shares[s.ID] = s
	r.byToken[s.LinkToken] = s
	return nil
}

func (r *fakeRepo) GetShareByToken(ctx context.Context, token string) (*database.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, database.ErrShareNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) IncrementDownloadCount(ctx context.Context, shareID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[shareID]
	if !ok {
		return database.ErrShareNotFound
	}
	if s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads {
		return database.ErrLimitExhausted
	}
	s.DownloadCount++
	return nil
}

func (r *fakeRepo) CreateDownload(ctx context.Context, d *database.Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, d)
	return nil
}

func (r *fakeRepo) CreateScanResult(ctx context.Context, s *database.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.scans[s.ID] = &cp
	return nil
}

func (r *fakeRepo) CompleteScanResult(ctx context.Context, s *database.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.scans[s.ID]
	if !ok || stored.Status != database.ScanScanning {
		return database.ErrScanNotFound
	}
	cp := *s
	r.scans[s.ID] = &cp
	return nil
}

func (r *fakeRepo) FailScanResult(ctx context.Context, scanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.scans[scanID]
	if !ok {
		return database.ErrScanNotFound
	}
	stored.Status = database.ScanFailed
	return nil
}

func (r *fakeRepo) SecurityStatsForUser(ctx context.Context, userID string, since time.Time) (*database.SecurityStats, error) {
	return &database.SecurityStats{}, nil
}

func (r *fakeRepo) ThreatsForUser(ctx context.Context, userID string, limit, offset int) ([]*database.ThreatRecord, int64, error) {
	return nil, 0, nil
}

// fakeStore is an in-memory object store double.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Save(ctx context.Context, objectName string, data io.Reader, size int64, contentType string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = buf.Bytes()
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }

// fakeClassifier returns a fixed verdict or a fixed error.
type fakeClassifier struct {
	verdict *scanner.Verdict
	err     error
}

func (c *fakeClassifier) ScanBytes(ctx context.Context, filename string, data []byte) (*scanner.Verdict, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.verdict, nil
}

func (c *fakeClassifier) ScanFileInfo(ctx context.Context, info scanner.FileInfo) (*scanner.Verdict, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.verdict, nil
}

func cleanVerdict() *scanner.Verdict {
	return &scanner.Verdict{Label: "benign", Confidence: 0.98}
}

func malwareVerdict(confidence float64) *scanner.Verdict {
	return &scanner.Verdict{IsMalware: true, Label: "malware", Confidence: confidence, Prediction: 1}
}

// fakeNotifier records notification types in order.
type fakeNotifier struct {
	mu    sync.Mutex
	types []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, typ, title, message string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types = append(n.types, typ)
	return nil
}

var errStoreDown = errors.New("store down")
