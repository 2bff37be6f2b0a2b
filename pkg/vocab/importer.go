package vocab

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/db"
	"github.com/newsword/newsword/pkg/dictionary"
	"github.com/newsword/newsword/pkg/disambig"
	"github.com/newsword/newsword/pkg/logging"
)

var (
	// ErrWordbookUnavailable is the only pipeline-level failure of an import.
	ErrWordbookUnavailable = errors.New("wordbook unavailable")
	// ErrNotUnknownWord is returned when an activity is not of type UNKNOWN_WORD.
	ErrNotUnknownWord = errors.New("scrap activity is not an unknown-word activity")

	errNoLexeme = errors.New("no dictionary entry")
)

const listSep = ", "

// Dictionary resolves surfaces to lemmas and lemmas to entries. Absence is a normal outcome.
type Dictionary interface {
	FindLemma(ctx context.Context, surface string) (string, bool)
	Lookup(ctx context.Context, lemma string) (*dictionary.Lexeme, bool)
}

// BatchDictionary looks up many lemmas at once. *dictionary.Client implements it; when the
// importer's Dictionary does too, list imports fetch every entry before resolving.
type BatchDictionary interface {
	LookupAll(ctx context.Context, lemmas []string) <-chan dictionary.LookupResult
}

// WordStore is the word persistence the importer needs.
type WordStore interface {
	FindByKey(ctx context.Context, targetCode int64, senseNo int) (*db.Word, error)
	FindByName(ctx context.Context, name string) (*db.Word, error)
	Insert(ctx context.Context, w *db.Word) error
	Update(ctx context.Context, id int64, changes map[string]any) error
}

// WordbookStore is the wordbook persistence the importer needs.
type WordbookStore interface {
	GetOrCreate(ctx context.Context, userID int64) (int64, error)
	AddWord(ctx context.Context, wordbookID, wordID int64) (bool, error)
}

// ActivityStore reads scrap activities.
type ActivityStore interface {
	FindByID(ctx context.Context, id int64) (*db.ScrapActivity, error)
}

// SenseChooser picks one of several senses for a text. *disambig.Chooser implements it.
type SenseChooser interface {
	Pick(ctx context.Context, text string, candidates []disambig.Candidate) int
}

// SavedWord is one token that made it into the wordbook.
type SavedWord struct {
	Surface string `json:"surface"`
	Lemma   string `json:"lemma"`
	WordID  int64  `json:"wordId"`
}

// ImportResult lists what an import stored. Tokens that could not be resolved are absent.
type ImportResult struct {
	WordbookID int64       `json:"wordbookId"`
	SavedWords []SavedWord `json:"savedWords"`
}

// Importer runs the unknown-word resolution pipeline.
type Importer struct {
	dict       Dictionary
	words      WordStore
	wordbooks  WordbookStore
	activities ActivityStore
	chooser    SenseChooser
	limits     Limits
	log        *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithChooser enables sense disambiguation for multi-sense entries.
func WithChooser(c SenseChooser) Option { return func(im *Importer) { im.chooser = c } }

// WithActivities enables ImportActivity.
func WithActivities(s ActivityStore) Option { return func(im *Importer) { im.activities = s } }

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option { return func(im *Importer) { im.limits = l } }

// NewImporter wires an Importer.
func NewImporter(dict Dictionary, words WordStore, wordbooks WordbookStore, logger *zap.Logger, opts ...Option) *Importer {
	im := &Importer{
		dict:      dict,
		words:     words,
		wordbooks: wordbooks,
		limits:    DefaultLimits(),
		log:       logging.OrNop(logger).With(zap.String("component", "vocab")),
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// ImportWords tokenizes rawText and stores every resolvable token in the user's wordbook.
// It fails only when the wordbook cannot be obtained.
func (im *Importer) ImportWords(ctx context.Context, userID int64, rawText string) (ImportResult, error) {
	return im.importTokens(ctx, userID, Tokenize(rawText), rawText, false)
}

// ImportList imports already separated words, as read by ReadCSV. Entries are fetched in one
// batch when the Dictionary is a BatchDictionary.
func (im *Importer) ImportList(ctx context.Context, userID int64, words []string) (ImportResult, error) {
	var tokens []string
	seen := make(map[string]struct{})
	for _, w := range words {
		for _, t := range Tokenize(w) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	return im.importTokens(ctx, userID, tokens, strings.Join(words, " "), true)
}

// ImportActivity imports the user answer of an UNKNOWN_WORD scrap activity for its user.
func (im *Importer) ImportActivity(ctx context.Context, activityID int64) (ImportResult, error) {
	if im.activities == nil {
		return ImportResult{}, errors.New("vocab: activity store not configured")
	}
	a, err := im.activities.FindByID(ctx, activityID)
	if err != nil {
		return ImportResult{}, fmt.Errorf("vocab: load activity %d: %w", activityID, err)
	}
	if a.ComparisonType != db.ComparisonUnknownWord {
		return ImportResult{}, fmt.Errorf("vocab: activity %d is %s: %w", activityID, a.ComparisonType, ErrNotUnknownWord)
	}
	return im.ImportWords(ctx, a.UserID, a.UserAnswer)
}

type lemmaHit struct {
	lemma string
	found bool
}

// prefetched holds dictionary answers gathered before resolving a list. Missing keys
// fall through to the Dictionary.
type prefetched struct {
	lemmas  map[string]lemmaHit
	lexemes map[string]*dictionary.Lexeme
}

func (im *Importer) prefetch(ctx context.Context, batch BatchDictionary, tokens []string) *prefetched {
	pf := &prefetched{
		lemmas:  make(map[string]lemmaHit, len(tokens)),
		lexemes: make(map[string]*dictionary.Lexeme, len(tokens)),
	}
	var lemmas []string
	seen := make(map[string]struct{})
	for _, token := range tokens {
		normalized := Normalize(token)
		if normalized == "" {
			continue
		}
		lemma, _ := im.findLemma(ctx, pf, normalized)
		if _, ok := seen[lemma]; ok {
			continue
		}
		seen[lemma] = struct{}{}
		lemmas = append(lemmas, lemma)
	}
	for r := range batch.LookupAll(ctx, lemmas) {
		if r.Found {
			pf.lexemes[r.Lemma] = r.Lexeme
		} else {
			pf.lexemes[r.Lemma] = nil
		}
	}
	return pf
}

func (im *Importer) importTokens(ctx context.Context, userID int64, tokens []string, contextText string, batch bool) (ImportResult, error) {
	wordbookID, err := im.wordbooks.GetOrCreate(ctx, userID)
	if err != nil {
		return ImportResult{}, fmt.Errorf("vocab: user %d: %w: %v", userID, ErrWordbookUnavailable, err)
	}
	res := ImportResult{WordbookID: wordbookID, SavedWords: []SavedWord{}}

	var pf *prefetched
	if bd, ok := im.dict.(BatchDictionary); ok && batch && len(tokens) > 1 {
		pf = im.prefetch(ctx, bd, tokens)
	}

	for _, token := range tokens {
		if ctx.Err() != nil {
			break
		}
		w, err := im.resolve(ctx, pf, token, contextText)
		if err != nil {
			im.log.Warn("skipping token", zap.String("token", token), zap.Error(err))
			continue
		}
		if _, err := im.wordbooks.AddWord(ctx, wordbookID, w.ID); err != nil {
			im.log.Warn("link word to wordbook failed", zap.String("token", token), zap.Int64("word_id", w.ID), zap.Error(err))
			continue
		}
		res.SavedWords = append(res.SavedWords, SavedWord{Surface: token, Lemma: w.Name, WordID: w.ID})
	}
	im.log.Info("imported words",
		zap.Int64("user_id", userID),
		zap.Int("tokens", len(tokens)),
		zap.Int("saved", len(res.SavedWords)))
	return res, nil
}

// resolve maps one token to a stored word, creating or updating it.
func (im *Importer) resolve(ctx context.Context, pf *prefetched, token, contextText string) (*db.Word, error) {
	normalized := Normalize(token)
	if normalized == "" {
		return nil, errors.New("empty after normalization")
	}

	lemma, found := im.findLemma(ctx, pf, normalized)
	lex, ok := im.lookup(ctx, pf, lemma)
	if !ok && !found && normalized != token {
		lex, ok = im.dict.Lookup(ctx, Truncate(token, im.limits.WordName))
	}
	if !ok || lex == nil {
		return nil, errNoLexeme
	}

	chosen := im.chooseSense(ctx, *lex, contextText)
	next := im.toWord(chosen, lemma)
	return im.upsert(ctx, next)
}

// findLemma returns the capped dictionary lemma for a normalized surface, or the surface
// itself when the dictionary has none.
func (im *Importer) findLemma(ctx context.Context, pf *prefetched, normalized string) (string, bool) {
	if pf != nil {
		if h, ok := pf.lemmas[normalized]; ok {
			return h.lemma, h.found
		}
	}
	lemma, found := im.dict.FindLemma(ctx, normalized)
	if !found || strings.TrimSpace(lemma) == "" {
		lemma = normalized
		found = false
	}
	lemma = Truncate(lemma, im.limits.WordName)
	if pf != nil {
		pf.lemmas[normalized] = lemmaHit{lemma: lemma, found: found}
	}
	return lemma, found
}

func (im *Importer) lookup(ctx context.Context, pf *prefetched, lemma string) (*dictionary.Lexeme, bool) {
	if pf != nil {
		if lex, ok := pf.lexemes[lemma]; ok {
			return lex, lex != nil
		}
	}
	return im.dict.Lookup(ctx, lemma)
}

func (im *Importer) chooseSense(ctx context.Context, lex dictionary.Lexeme, contextText string) dictionary.Lexeme {
	if im.chooser == nil || len(lex.Senses) < 2 {
		return lex
	}
	cands := make([]disambig.Candidate, len(lex.Senses))
	for i, s := range lex.Senses {
		c := disambig.Candidate{
			Lemma:      lex.Lemma,
			TargetCode: lex.TargetCode,
			SenseNo:    s.No,
			Definition: s.Definition,
		}
		if len(s.Examples) > 0 {
			c.Example = s.Examples[0]
		}
		if s.Category != "" {
			c.Categories = []string{s.Category}
		}
		cands[i] = c
	}
	return lex.WithSense(im.chooser.Pick(ctx, contextText, cands))
}

func (im *Importer) toWord(lex dictionary.Lexeme, lemma string) db.Word {
	name := strings.TrimSpace(lex.Lemma)
	if name == "" {
		name = lemma
	}
	l := im.limits
	return db.Word{
		Name:       Truncate(name, l.WordName),
		Synonyms:   JoinAndLimitEach(lex.Synonyms, listSep, l.ListElement, l.List),
		Antonyms:   JoinAndLimitEach(lex.Antonyms, listSep, l.ListElement, l.List),
		Definition: Truncate(strings.TrimSpace(lex.Definition), l.Definition),
		Category:   JoinAndLimitEach(splitCategories(lex.Category), listSep, l.ListElement, l.Category),
		Example:    JoinAndLimitEach(lex.Examples, "\n", l.Example, l.Example),
		ShoulderNo: lex.ShoulderNo,
		TargetCode: lex.TargetCode,
		SenseNo:    lex.SenseNo,
	}
}

func splitCategories(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '/' })
}

// upsert finds next by its sense key, or by name when it has none, inserting when absent and
// writing only the columns that changed otherwise.
func (im *Importer) upsert(ctx context.Context, next db.Word) (*db.Word, error) {
	existing, err := im.find(ctx, next)
	if errors.Is(err, db.ErrNotFound) {
		w := next
		err = im.words.Insert(ctx, &w)
		if err == nil {
			return &w, nil
		}
		if !errors.Is(err, db.ErrAlreadyExists) {
			return nil, err
		}
		// lost a race to a concurrent import of the same key
		existing, err = im.find(ctx, next)
	}
	if err != nil {
		return nil, err
	}

	changes := existing.Changes(next)
	if len(changes) == 0 {
		return existing, nil
	}
	if err := im.words.Update(ctx, existing.ID, changes); err != nil {
		return nil, err
	}
	im.log.Debug("updated word", zap.Int64("word_id", existing.ID), zap.Int("columns", len(changes)))
	updated := next
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if !next.HasSenseKey() {
		updated.TargetCode, updated.SenseNo = existing.TargetCode, existing.SenseNo
	}
	return &updated, nil
}

func (im *Importer) find(ctx context.Context, w db.Word) (*db.Word, error) {
	if w.HasSenseKey() {
		return im.words.FindByKey(ctx, w.TargetCode, w.SenseNo)
	}
	return im.words.FindByName(ctx, w.Name)
}
