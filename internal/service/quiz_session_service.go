package service

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/repository"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSnapshotEvery = 10

// quizSession 内存中的测验状态，仅由 QuizSessionService 在持锁时修改
type quizSession struct {
	id               string
	state            model.SessionState
	failure          string
	config           model.QuizConfig
	questions        []model.PreparedQuestion
	currentIndex     int
	selected         []int
	isSubmitted      bool
	records          []model.AnswerRecord
	remainingSeconds *int
	startedAt        time.Time
	attempt          *model.QuizAttempt
}

func (s *quizSession) current() *model.PreparedQuestion {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return nil
	}
	return &s.questions[s.currentIndex]
}

func (s *quizSession) score() int {
	n := 0
	for _, r := range s.records {
		if r.IsCorrect() {
			n++
		}
	}
	return n
}

func (s *quizSession) snapshot() *model.QuizSessionSnapshot {
	started := s.startedAt
	snap := &model.QuizSessionSnapshot{
		ID:           s.id,
		Config:       s.config,
		Questions:    slices.Clone(s.questions),
		CurrentIndex: s.currentIndex,
		SelectedSet:  slices.Clone(s.selected),
		IsSubmitted:  s.isSubmitted,
		Records:      slices.Clone(s.records),
		StartedAt:    &started,
	}
	if snap.SelectedSet == nil {
		snap.SelectedSet = []int{}
	}
	if snap.Records == nil {
		snap.Records = []model.AnswerRecord{}
	}
	if s.remainingSeconds != nil {
		snap.RemainingSeconds = util.Ptr(*s.remainingSeconds)
	}
	return snap
}

// QuestionView 展示给答题者的题目；作答前不包含答案和解析
type QuestionView struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Subcategory    *string  `json:"subcategory,omitempty"`
	Stem           string   `json:"stem"`
	Choices        []string `json:"choices"`
	ImageName      *string  `json:"imageName,omitempty"`
	MultiAnswer    bool     `json:"multiAnswer"`
	CorrectIndices []int    `json:"correctIndices,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}

// SessionView 测验状态的只读视图
type SessionView struct {
	ID               string               `json:"id"`
	State            model.SessionState   `json:"state"`
	Failure          string               `json:"failure,omitempty"`
	Config           model.QuizConfig     `json:"config"`
	CurrentIndex     int                  `json:"currentIndex"`
	Total            int                  `json:"total"`
	Progress         float64              `json:"progress"`
	Score            int                  `json:"score"`
	Selected         []int                `json:"selected"`
	IsSubmitted      bool                 `json:"isSubmitted"`
	RemainingSeconds *int                 `json:"remainingSeconds,omitempty"`
	Current          *QuestionView        `json:"current,omitempty"`
	Records          []model.AnswerRecord `json:"records,omitempty"`
	Attempt          *model.QuizAttempt   `json:"attempt,omitempty"`
}

func (s *quizSession) view() *SessionView {
	v := &SessionView{
		ID:           s.id,
		State:        s.state,
		Failure:      s.failure,
		Config:       s.config,
		CurrentIndex: s.currentIndex,
		Total:        len(s.questions),
		Score:        s.score(),
		Selected:     slices.Clone(s.selected),
		IsSubmitted:  s.isSubmitted,
		Attempt:      s.attempt,
	}
	if v.Selected == nil {
		v.Selected = []int{}
	}
	if v.Total > 0 {
		v.Progress = float64(s.currentIndex) / float64(v.Total)
	}
	if s.remainingSeconds != nil {
		v.RemainingSeconds = util.Ptr(*s.remainingSeconds)
	}
	if s.state == model.SessionFinished {
		v.Records = slices.Clone(s.records)
		return v
	}
	if q := s.current(); q != nil && s.state == model.SessionRunning {
		qv := &QuestionView{
			ID:          q.ID,
			Category:    q.Original.Category,
			Subcategory: q.Original.Subcategory,
			Stem:        q.Stem,
			Choices:     q.Choices,
			ImageName:   q.Original.ImageName,
			MultiAnswer: q.IsMultiAnswer(),
		}
		if s.isSubmitted {
			qv.CorrectIndices = q.CorrectIndices
			qv.Explanation = q.Original.Explanation
		}
		v.Current = qv
	}
	return v
}

// QuizSessionService 单用户测验会话：idle → loading → running → finished|failed
type QuizSessionService struct {
	mu sync.Mutex

	Catalog       *repository.CatalogRepository
	Sessions      *repository.SessionRepository
	History       *HistoryService
	Engine        *QuizEngine
	Now           func() time.Time
	SnapshotEvery int

	rng     *rand.Rand
	session *quizSession
	writer  *snapshotWriter
	// discarded 会话被放弃后，快照清除可能尚未落盘，不能再从快照恢复
	discarded bool
}

func NewQuizSessionService(catalog *repository.CatalogRepository, sessions *repository.SessionRepository, history *HistoryService, engine *QuizEngine, snapshotEvery int) *QuizSessionService {
	if snapshotEvery <= 0 {
		snapshotEvery = defaultSnapshotEvery
	}
	return &QuizSessionService{
		Catalog:       catalog,
		Sessions:      sessions,
		History:       history,
		Engine:        engine,
		Now:           time.Now,
		SnapshotEvery: snapshotEvery,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		writer:        newSnapshotWriter(sessions),
	}
}

// Seed 固定随机源，测试用
func (s *QuizSessionService) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Close 等待未完成的快照写入，之后的状态变化不再持久化
func (s *QuizSessionService) Close() {
	s.mu.Lock()
	s.writer.closed = true
	s.mu.Unlock()
	s.writer.close()
}

// Start 按配置组卷并开始新测验，丢弃旧会话
func (s *QuizSessionService) Start(ctx context.Context, cfg model.QuizConfig) (*SessionView, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	cfg.Categories = nonNil(cfg.Categories)
	cfg.Subcategories = nonNil(cfg.Subcategories)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &quizSession{
		id:        uuid.NewString(),
		state:     model.SessionLoading,
		config:    cfg,
		startedAt: s.Now(),
	}
	s.session = sess
	s.writer.clear()

	all, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		sess.state = model.SessionFailed
		sess.failure = err.Error()
		return sess.view(), err
	}
	cfg.Categories = resolveCategories(all, cfg.Categories)
	sess.config = cfg

	var history map[string]model.ReviewHistory
	if cfg.Mode == model.ModeSpaced && s.History != nil {
		history = s.History.All(ctx)
	}

	sess.questions = s.Engine.Prepare(all, cfg, history, s.rng)
	if len(sess.questions) == 0 {
		sess.state = model.SessionFailed
		sess.failure = util.ErrNoQuestions.Error()
		return sess.view(), util.ErrNoQuestions
	}

	sess.state = model.SessionRunning
	if cfg.Mode == model.ModeTest && cfg.TimeLimitSeconds != nil {
		sess.remainingSeconds = util.Ptr(*cfg.TimeLimitSeconds)
	}
	s.persist()

	logger.Log.Info("Quiz session started",
		zap.String("session", sess.id),
		zap.String("mode", string(cfg.Mode)),
		zap.Int("level", int(cfg.Level)),
		zap.Int("questions", len(sess.questions)))
	return sess.view(), nil
}

// Current 返回当前会话；内存中没有时尝试从快照恢复
func (s *QuizSessionService) Current(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session.view(), nil
	}
	if err := s.resumeLocked(ctx); err != nil {
		return nil, err
	}
	return s.session.view(), nil
}

// Resume 从持久化快照重建会话
func (s *QuizSessionService) Resume(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.state == model.SessionRunning {
		return s.session.view(), nil
	}
	if err := s.resumeLocked(ctx); err != nil {
		return nil, err
	}
	return s.session.view(), nil
}

func (s *QuizSessionService) resumeLocked(ctx context.Context) error {
	// 内存中已有会话或会话已放弃时，存储里的快照都已过期
	if s.discarded || s.session != nil {
		return util.ErrSessionNotFound
	}
	snap, err := s.Sessions.Load(ctx)
	if err != nil {
		logger.Log.Warn("Quiz session snapshot unreadable", zap.Error(err))
		return util.ErrSessionNotFound
	}
	if snap == nil || len(snap.Questions) == 0 {
		return util.ErrSessionNotFound
	}

	sess := &quizSession{
		id:           snap.ID,
		state:        model.SessionRunning,
		config:       snap.Config,
		questions:    snap.Questions,
		currentIndex: min(max(snap.CurrentIndex, 0), len(snap.Questions)-1),
		selected:     snap.SelectedSet,
		isSubmitted:  snap.IsSubmitted,
		records:      snap.Records,
		startedAt:    s.Now(),
	}
	if sess.id == "" {
		sess.id = uuid.NewString()
	}
	if snap.StartedAt != nil {
		sess.startedAt = *snap.StartedAt
	}
	if snap.RemainingSeconds != nil {
		sess.remainingSeconds = util.Ptr(*snap.RemainingSeconds)
	}
	s.session = sess
	logger.Log.Info("Quiz session resumed",
		zap.String("session", sess.id),
		zap.Int("currentIndex", sess.currentIndex),
		zap.Int("questions", len(sess.questions)))
	return nil
}

// Summary 用于"继续上次测验"，没有可恢复的会话时返回 nil
func (s *QuizSessionService) Summary(ctx context.Context) *model.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.state == model.SessionRunning {
		return &model.SessionSummary{Config: s.session.config, CurrentIndex: s.session.currentIndex, Total: len(s.session.questions)}
	}
	if s.discarded || s.session != nil {
		return nil
	}
	snap, err := s.Sessions.Load(ctx)
	if err != nil || snap == nil || len(snap.Questions) == 0 {
		return nil
	}
	return &model.SessionSummary{Config: snap.Config, CurrentIndex: snap.CurrentIndex, Total: len(snap.Questions)}
}

// running 取当前运行中的会话，必须持锁调用
func (s *QuizSessionService) running() (*quizSession, error) {
	if s.session == nil {
		return nil, util.ErrSessionNotFound
	}
	if s.session.state != model.SessionRunning {
		return nil, fmt.Errorf("%w: session is %s", util.ErrInvalidTransition, s.session.state)
	}
	return s.session, nil
}

// Toggle 选择或取消选项。单选题直接提交；复习模式提交后锁定
func (s *QuizSessionService) Toggle(ctx context.Context, index int) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	q := sess.current()
	if q == nil {
		return sess.view(), nil
	}
	if index < 0 || index >= len(q.Choices) {
		return nil, fmt.Errorf("%w: %d", util.ErrInvalidChoice, index)
	}
	if sess.config.Mode == model.ModeRevision && sess.isSubmitted {
		return sess.view(), nil
	}

	if !q.IsMultiAnswer() {
		sess.selected = []int{index}
		s.submitCurrent(ctx)
		return sess.view(), nil
	}

	if i := slices.Index(sess.selected, index); i >= 0 {
		sess.selected = slices.Delete(sess.selected, i, i+1)
	} else {
		sess.selected = append(sess.selected, index)
		sort.Ints(sess.selected)
	}
	s.persist()
	return sess.view(), nil
}

// Validate 提交当前选择
func (s *QuizSessionService) Validate(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	s.submitCurrent(ctx)
	return sess.view(), nil
}

// Skip 以空选择提交，计为答错
func (s *QuizSessionService) Skip(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	sess.selected = nil
	s.submitCurrent(ctx)
	return sess.view(), nil
}

func (s *QuizSessionService) Next(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	s.goNext(ctx)
	return sess.view(), nil
}

func (s *QuizSessionService) Finish(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	s.finish(ctx)
	return sess.view(), nil
}

// Abandon 丢弃当前会话和快照，不写入测验记录
func (s *QuizSessionService) Abandon(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.discarded = true
	s.writer.clear()
}

// Tick 计时器每秒调用一次；仅对有时限的考试模式生效
func (s *QuizSessionService) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sess == nil || sess.state != model.SessionRunning || sess.remainingSeconds == nil {
		return
	}
	if sess.config.Mode != model.ModeTest {
		return
	}

	remaining := *sess.remainingSeconds
	if remaining <= 1 {
		*sess.remainingSeconds = 0
		s.recordCurrentIfNeeded()
		logger.Log.Info("Quiz time limit reached", zap.String("session", sess.id))
		s.finish(ctx)
		return
	}
	*sess.remainingSeconds = remaining - 1
	if remaining%s.SnapshotEvery == 0 {
		s.persist()
	}
}

func (s *QuizSessionService) submitCurrent(ctx context.Context) {
	sess := s.session
	q := sess.current()
	if q == nil {
		return
	}
	if sess.config.Mode == model.ModeRevision && sess.isSubmitted {
		return
	}

	s.appendRecord(q, slices.Clone(sess.selected))
	if sess.config.Mode == model.ModeRevision {
		sess.isSubmitted = true
		s.persist()
		return
	}
	s.goNext(ctx)
}

func (s *QuizSessionService) goNext(ctx context.Context) {
	sess := s.session
	sess.selected = nil
	sess.isSubmitted = false
	if sess.currentIndex+1 < len(sess.questions) {
		sess.currentIndex++
	} else {
		s.finish(ctx)
	}
	s.persist()
}

func (s *QuizSessionService) recordCurrentIfNeeded() {
	sess := s.session
	q := sess.current()
	if q == nil || len(sess.records) > sess.currentIndex {
		return
	}
	s.appendRecord(q, slices.Clone(sess.selected))
}

func (s *QuizSessionService) appendRecord(q *model.PreparedQuestion, selected []int) {
	if selected == nil {
		selected = []int{}
	}
	sort.Ints(selected)
	correct := slices.Clone(q.CorrectIndices)
	sort.Ints(correct)
	s.session.records = append(s.session.records, model.AnswerRecord{
		ID:              uuid.NewString(),
		QuestionID:      q.Original.ID,
		SelectedIndices: selected,
		CorrectIndices:  correct,
		Category:        q.Original.Category,
		Subcategory:     q.Original.Subcategory,
		Stem:            q.Stem,
		Choices:         q.Choices,
		Explanation:     q.Original.Explanation,
	})
}

// finish 结束测验，写入测验记录和每题历史，清除快照
func (s *QuizSessionService) finish(ctx context.Context) {
	sess := s.session
	if sess.state != model.SessionRunning {
		return
	}
	sess.state = model.SessionFinished
	now := s.Now()
	attempt := BuildAttempt(sess.config, sess.records, len(sess.questions), sess.startedAt, now)
	sess.attempt = &attempt
	s.writer.clear()

	results := make([]model.QuestionResult, 0, len(sess.records))
	for _, r := range sess.records {
		results = append(results, model.QuestionResult{QuestionID: r.QuestionID, IsCorrect: r.IsCorrect()})
	}
	if s.History != nil {
		if err := s.History.RecordAttempt(ctx, attempt, results); err != nil {
			logger.Log.Error("Failed to save quiz attempt", zap.String("session", sess.id), zap.Error(err))
		}
	}
	logger.Log.Info("Quiz session finished",
		zap.String("session", sess.id),
		zap.Int("score", attempt.Score),
		zap.Int("total", attempt.Total),
		zap.Int("durationSeconds", attempt.DurationSeconds))
}

// persist 仅在运行中保存快照
func (s *QuizSessionService) persist() {
	sess := s.session
	if sess == nil || sess.state != model.SessionRunning || len(sess.questions) == 0 {
		return
	}
	s.writer.save(sess.snapshot())
}

// BuildAttempt 汇总答题记录：总分、按类别和子类别统计
func BuildAttempt(cfg model.QuizConfig, records []model.AnswerRecord, total int, startedAt, finishedAt time.Time) model.QuizAttempt {
	attempt := model.QuizAttempt{
		ID:              uuid.NewString(),
		Date:            finishedAt,
		Level:           cfg.Level,
		Mode:            cfg.Mode,
		Total:           total,
		DurationSeconds: max(0, int(finishedAt.Sub(startedAt).Seconds())),
		PerCategory:     make(map[string]model.CategoryResult),
	}

	perSub := make(map[string]model.CategoryResult)
	for _, r := range records {
		correct := r.IsCorrect()
		if correct {
			attempt.Score++
		}

		c := attempt.PerCategory[r.Category]
		c.Total++
		if correct {
			c.Correct++
		}
		attempt.PerCategory[r.Category] = c

		if r.Subcategory == nil {
			continue
		}
		sub := strings.TrimSpace(*r.Subcategory)
		if sub == "" {
			continue
		}
		sc := perSub[sub]
		sc.Total++
		if correct {
			sc.Correct++
		}
		perSub[sub] = sc
	}

	attempt.Categories = make([]string, 0, len(attempt.PerCategory))
	for cat := range attempt.PerCategory {
		attempt.Categories = append(attempt.Categories, cat)
	}
	sort.Strings(attempt.Categories)
	if len(perSub) > 0 {
		attempt.PerSubcategory = perSub
	}
	return attempt
}

// resolveCategories 把别名和大小写不同的写法换成题库中的类别名
func resolveCategories(questions []*model.Question, categories []string) []string {
	if len(categories) == 0 {
		return categories
	}
	seed := make([]string, 0, len(questions))
	for _, q := range questions {
		if q != nil {
			seed = append(seed, q.Category)
		}
	}
	resolver := NewCategoryResolver(seed...)
	out := make([]string, 0, len(categories))
	for _, raw := range categories {
		if c, ok := resolver.Resolve(raw); ok && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// snapshotOp 写入或清除快照
type snapshotOp struct {
	snap  *model.QuizSessionSnapshot
	clear bool
}

// snapshotWriter 后台串行写快照。队列只保留最新一条，调用方永不阻塞
type snapshotWriter struct {
	repo *repository.SessionRepository
	ops  chan snapshotOp
	done chan struct{}
	once sync.Once

	closed bool
}

func newSnapshotWriter(repo *repository.SessionRepository) *snapshotWriter {
	w := &snapshotWriter{
		repo: repo,
		ops:  make(chan snapshotOp, 1),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	ctx := context.Background()
	for op := range w.ops {
		var err error
		if op.clear {
			err = w.repo.Clear(ctx)
		} else {
			err = w.repo.Save(ctx, op.snap)
		}
		if err != nil {
			logger.Log.Warn("Quiz session snapshot write failed", zap.Bool("clear", op.clear), zap.Error(err))
		}
	}
}

// submit 调用方持有服务锁，所以同一时刻只有一个发送者
func (w *snapshotWriter) submit(op snapshotOp) {
	if w.closed {
		return
	}
	for {
		select {
		case w.ops <- op:
			return
		default:
		}
		// 丢弃尚未写出的旧快照
		select {
		case <-w.ops:
		default:
		}
	}
}

func (w *snapshotWriter) save(snap *model.QuizSessionSnapshot) { w.submit(snapshotOp{snap: snap}) }

func (w *snapshotWriter) clear() { w.submit(snapshotOp{clear: true}) }

func (w *snapshotWriter) close() {
	w.once.Do(func() { close(w.ops) })
	<-w.done
}
