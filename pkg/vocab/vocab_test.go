package vocab

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsword/newsword/pkg/db"
	"github.com/newsword/newsword/pkg/dictionary"
	"github.com/newsword/newsword/pkg/disambig"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"배(과일), 배;사과／감, 감", []string{"배", "사과", "감"}},
		{"청사진", []string{"청사진"}},
		{"  가·나 / 다\t라\n마 ", []string{"가", "나", "다", "라", "마"}},
		{"금리（金利）, 환율[換率]", []string{"금리", "환율"}},
		{"", []string{}},
		{"(주석만)", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "청사진", Normalize(" 청 사진 "))
	assert.Equal(t, "AB1", Normalize("ＡＢ１"))
	// conjoining jamo compose to a precomposed syllable
	assert.Equal(t, "\ud55c", Normalize("\u1112\u1161\u11ab"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "청사", Truncate("청사진", 2))
	assert.Equal(t, "청사진", Truncate("청사진", 3))
	assert.Equal(t, "청사진", Truncate("청사진", 0))
}

func TestJoinAndLimitEach(t *testing.T) {
	inputs := [][]string{
		nil,
		{"a"},
		{"설계도", "계획", "구상"},
		{strings.Repeat("가", 80), strings.Repeat("나", 10), "다"},
		{" ", "", "x"},
		{strings.Repeat("z", 30), strings.Repeat("y", 30), strings.Repeat("w", 30), strings.Repeat("v", 30)},
	}
	caps := []struct{ per, total int }{{5, 12}, {50, 500}, {10, 3}, {1, 1}, {20, 45}}
	for _, items := range inputs {
		for _, c := range caps {
			got := JoinAndLimitEach(items, ", ", c.per, c.total)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), c.total, "%q per=%d total=%d", got, c.per, c.total)
			if got == "" {
				continue
			}
			for _, part := range strings.Split(got, ", ") {
				assert.LessOrEqual(t, utf8.RuneCountInString(part), c.per)
			}
		}
	}
	assert.Equal(t, "설계도, 계획", JoinAndLimitEach([]string{"설계도", "계획", "구상"}, ", ", 10, 9))
	assert.Equal(t, "설계, 계획", JoinAndLimitEach([]string{"설계도", "계획"}, ", ", 2, 100))
}

func TestReadCSV(t *testing.T) {
	in := "word,note\n청사진,\n\"배, 사과\",감\n\n"
	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"청사진", "배, 사과", "감"}, got)

	_, err = ReadCSV(strings.NewReader("\"unterminated"))
	assert.Error(t, err)
}

type fakeDict struct {
	mu      sync.Mutex
	lemmas  map[string]string
	entries map[string]dictionary.Lexeme
	lookups []string
}

func (d *fakeDict) FindLemma(_ context.Context, surface string) (string, bool) {
	l, ok := d.lemmas[surface]
	return l, ok
}

func (d *fakeDict) Lookup(_ context.Context, lemma string) (*dictionary.Lexeme, bool) {
	d.mu.Lock()
	d.lookups = append(d.lookups, lemma)
	d.mu.Unlock()
	lex, ok := d.entries[lemma]
	if !ok {
		return nil, false
	}
	return &lex, true
}

type stores struct {
	conn      *sql.DB
	words     *db.WordStore
	wordbooks *db.WordbookStore
	acts      *db.ActivityStore
}

func newStores(t *testing.T) stores {
	t.Helper()
	conn, err := db.OpenMigrated(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return stores{conn: conn, words: db.NewWordStore(conn), wordbooks: db.NewWordbookStore(conn), acts: db.NewActivityStore(conn)}
}

func countWords(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM words`).Scan(&n))
	return n
}

func blueprintDict() *fakeDict {
	return &fakeDict{
		lemmas: map[string]string{"청사진": "청사진"},
		entries: map[string]dictionary.Lexeme{
			"청사진": {
				Lemma:      "청사진",
				TargetCode: 401234,
				SenseNo:    1,
				Definition: "미래에 대한 희망적인 계획이나 구상.",
				Category:   "사회 일반",
				Synonyms:   []string{"설계도"},
			},
		},
	}
}

func TestImportWordsBlueprint(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	im := NewImporter(blueprintDict(), s.words, s.wordbooks, nil)

	res, err := im.ImportWords(ctx, 1, "청사진")
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)
	assert.NotZero(t, res.WordbookID)

	sw := res.SavedWords[0]
	assert.Equal(t, "청사진", sw.Surface)
	assert.Equal(t, "청사진", sw.Lemma)
	assert.NotZero(t, sw.WordID)

	w, err := s.words.FindByID(ctx, sw.WordID)
	require.NoError(t, err)
	assert.Equal(t, "청사진", w.Name)
	assert.Equal(t, 0, w.ShoulderNo)
	assert.Contains(t, w.Definition, "미래")
	assert.Equal(t, "설계도", w.Synonyms)

	ids, err := s.wordbooks.WordIDs(ctx, res.WordbookID)
	require.NoError(t, err)
	assert.Equal(t, []int64{sw.WordID}, ids)

	// importing again is idempotent
	again, err := im.ImportWords(ctx, 1, "청사진")
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Equal(t, 1, countWords(t, s.conn))
}

func TestImportWordsUpdatesKeyedWordInPlace(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	existing := &db.Word{Name: "배", Definition: "old", TargetCode: 500, SenseNo: 2}
	require.NoError(t, s.words.Insert(ctx, existing))

	dict := &fakeDict{entries: map[string]dictionary.Lexeme{
		"배": {Lemma: "배", TargetCode: 500, SenseNo: 2, ShoulderNo: 3, Definition: "배나무의 열매", Antonyms: []string{"x"}},
	}}
	res, err := NewImporter(dict, s.words, s.wordbooks, nil).ImportWords(ctx, 9, "배(과일)")
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)
	assert.Equal(t, existing.ID, res.SavedWords[0].WordID)
	assert.Equal(t, 1, countWords(t, s.conn))

	w, err := s.words.FindByKey(ctx, 500, 2)
	require.NoError(t, err)
	assert.Equal(t, "배나무의 열매", w.Definition)
	assert.Equal(t, 3, w.ShoulderNo)
	assert.Equal(t, "x", w.Antonyms)
}

func TestImportWordsSkipsUnresolvedTokens(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	dict := blueprintDict()

	res, err := NewImporter(dict, s.words, s.wordbooks, nil).ImportWords(ctx, 2, "없는말, 청사진")
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)
	assert.Equal(t, "청사진", res.SavedWords[0].Surface)
	assert.Equal(t, []string{"없는말", "청사진"}, dict.lookups)
}

func TestImportWordsRetriesRawSurface(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	// NFKC folds the full-width form; only the raw form is in the dictionary.
	dict := &fakeDict{entries: map[string]dictionary.Lexeme{
		"ＩＴ": {Lemma: "아이티", Definition: "정보 기술"},
	}}

	res, err := NewImporter(dict, s.words, s.wordbooks, nil).ImportWords(ctx, 3, "ＩＴ")
	require.NoError(t, err)
	assert.Equal(t, []string{"IT", "ＩＴ"}, dict.lookups)
	require.Len(t, res.SavedWords, 1)
	assert.Equal(t, "아이티", res.SavedWords[0].Lemma)
}

func TestImportWordsUnkeyedByName(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	dict := &fakeDict{entries: map[string]dictionary.Lexeme{"감": {Lemma: "감", Definition: "감나무의 열매"}}}
	im := NewImporter(dict, s.words, s.wordbooks, nil)

	first, err := im.ImportWords(ctx, 4, "감")
	require.NoError(t, err)
	dict.entries["감"] = dictionary.Lexeme{Lemma: "감", Definition: "주황색 열매"}
	second, err := im.ImportWords(ctx, 4, "감")
	require.NoError(t, err)

	assert.Equal(t, first.SavedWords[0].WordID, second.SavedWords[0].WordID)
	w, err := s.words.FindByName(ctx, "감")
	require.NoError(t, err)
	assert.Equal(t, "주황색 열매", w.Definition)
}

func TestImportWordsConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	im := NewImporter(blueprintDict(), s.words, s.wordbooks, nil)

	const n = 6
	var wg sync.WaitGroup
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := im.ImportWords(ctx, int64(i+1), "청사진")
			if err != nil || len(res.SavedWords) != 1 {
				t.Errorf("import %d: %v %+v", i, err, res)
				return
			}
			ids[i] = res.SavedWords[0].WordID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, countWords(t, s.conn))
}

type failingWordbooks struct{}

func (failingWordbooks) GetOrCreate(context.Context, int64) (int64, error) {
	return 0, errors.New("db down")
}

func (failingWordbooks) AddWord(context.Context, int64, int64) (bool, error) { return false, nil }

func TestImportWordsWordbookUnavailable(t *testing.T) {
	s := newStores(t)
	_, err := NewImporter(blueprintDict(), s.words, failingWordbooks{}, nil).ImportWords(context.Background(), 1, "청사진")
	assert.ErrorIs(t, err, ErrWordbookUnavailable)
}

type fixedChooser struct {
	idx  int
	seen []disambig.Candidate
}

func (c *fixedChooser) Pick(_ context.Context, _ string, cands []disambig.Candidate) int {
	c.seen = cands
	return c.idx
}

func TestImportWordsChoosesSense(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	dict := &fakeDict{entries: map[string]dictionary.Lexeme{
		"배": {
			Lemma: "배", TargetCode: 500, SenseNo: 1, Definition: "몸",
			Senses: []dictionary.Sense{
				{No: 1, Definition: "몸", Category: "의학"},
				{No: 2, Definition: "교통수단", Category: "교통", Examples: []string{"배를 타다"}},
			},
		},
	}}
	ch := &fixedChooser{idx: 1}

	res, err := NewImporter(dict, s.words, s.wordbooks, nil, WithChooser(ch)).ImportWords(ctx, 1, "배")
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)
	require.Len(t, ch.seen, 2)
	assert.Equal(t, "배를 타다", ch.seen[1].Example)

	w, err := s.words.FindByKey(ctx, 500, 2)
	require.NoError(t, err)
	assert.Equal(t, "교통수단", w.Definition)
	assert.Equal(t, "교통", w.Category)
	assert.Equal(t, "배를 타다", w.Example)
}

func TestImportActivity(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	im := NewImporter(blueprintDict(), s.words, s.wordbooks, nil, WithActivities(s.acts))

	unknown := &db.ScrapActivity{UserID: 5, ComparisonType: db.ComparisonUnknownWord, UserAnswer: "청사진, 청사진"}
	require.NoError(t, s.acts.Insert(ctx, unknown))
	summary := &db.ScrapActivity{UserID: 5, ComparisonType: db.ComparisonSummary, UserAnswer: "청사진"}
	require.NoError(t, s.acts.Insert(ctx, summary))

	res, err := im.ImportActivity(ctx, unknown.ID)
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)

	wbID, err := s.wordbooks.GetOrCreate(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, wbID, res.WordbookID)

	_, err = im.ImportActivity(ctx, summary.ID)
	assert.ErrorIs(t, err, ErrNotUnknownWord)

	_, err = im.ImportActivity(ctx, 12345)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestImportList(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	res, err := NewImporter(blueprintDict(), s.words, s.wordbooks, nil).ImportList(ctx, 1, []string{"청사진", "청사진(靑寫眞)", "없음"})
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)
}

// racingWords acts as if another import stored the same key between lookup and insert.
type racingWords struct {
	winner  db.Word
	finds   int
	inserts int
	updated map[string]any
}

func (r *racingWords) FindByKey(_ context.Context, targetCode int64, senseNo int) (*db.Word, error) {
	r.finds++
	if r.finds == 1 {
		return nil, db.ErrNotFound
	}
	w := r.winner
	return &w, nil
}

func (r *racingWords) FindByName(context.Context, string) (*db.Word, error) {
	return nil, db.ErrNotFound
}

func (r *racingWords) Insert(context.Context, *db.Word) error {
	r.inserts++
	return fmt.Errorf("insert word: %w", db.ErrAlreadyExists)
}

func (r *racingWords) Update(_ context.Context, id int64, changes map[string]any) error {
	r.updated = changes
	return nil
}

func TestImportWordsRefetchesAfterUniqueViolation(t *testing.T) {
	s := newStores(t)
	words := &racingWords{winner: db.Word{ID: 77, Name: "청사진", TargetCode: 401234, SenseNo: 1, Definition: "다른 뜻"}}

	res, err := NewImporter(blueprintDict(), words, s.wordbooks, nil).ImportWords(context.Background(), 1, "청사진")
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 1)
	assert.EqualValues(t, 77, res.SavedWords[0].WordID)
	assert.Equal(t, 1, words.inserts)
	assert.Equal(t, 2, words.finds)
	assert.Equal(t, "미래에 대한 희망적인 계획이나 구상.", words.updated["definition"])

	ids, err := s.wordbooks.WordIDs(context.Background(), res.WordbookID)
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, ids)
}

func TestImportWordsAfterKeyedWordSoftDeleted(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	dict := &fakeDict{entries: map[string]dictionary.Lexeme{
		"배": {Lemma: "배", TargetCode: 500, SenseNo: 2, Definition: "배나무의 열매"},
	}}
	im := NewImporter(dict, s.words, s.wordbooks, nil)

	first, err := im.ImportWords(ctx, 1, "배")
	require.NoError(t, err)
	require.Len(t, first.SavedWords, 1)
	_, err = s.conn.ExecContext(ctx, `UPDATE words SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?`, first.SavedWords[0].WordID)
	require.NoError(t, err)

	second, err := im.ImportWords(ctx, 1, "배")
	require.NoError(t, err)
	require.Len(t, second.SavedWords, 1)
	assert.NotEqual(t, first.SavedWords[0].WordID, second.SavedWords[0].WordID)
}

// batchDict answers lookups in one batch and records which lemmas were asked.
type batchDict struct {
	*fakeDict
	batches [][]string
}

func (b *batchDict) LookupAll(_ context.Context, lemmas []string) <-chan dictionary.LookupResult {
	b.batches = append(b.batches, lemmas)
	out := make(chan dictionary.LookupResult, len(lemmas))
	for i, l := range lemmas {
		r := dictionary.LookupResult{Index: i, Lemma: l}
		if lex, ok := b.entries[l]; ok {
			r.Lexeme, r.Found = &lex, true
		}
		out <- r
	}
	close(out)
	return out
}

func TestImportListFetchesEntriesInOneBatch(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	fd := blueprintDict()
	fd.entries["설계도"] = dictionary.Lexeme{Lemma: "설계도", TargetCode: 33, SenseNo: 1, Definition: "설계한 그림"}
	dict := &batchDict{fakeDict: fd}

	res, err := NewImporter(dict, s.words, s.wordbooks, nil).ImportList(ctx, 1, []string{"청사진", "청사진(靑寫眞)", "설계도", "없음"})
	require.NoError(t, err)
	require.Len(t, res.SavedWords, 2)
	assert.Equal(t, [][]string{{"청사진", "설계도", "없음"}}, dict.batches)
	assert.Empty(t, fd.lookups, "every entry came from the batch")

	// free text keeps the one-by-one path
	_, err = NewImporter(dict, s.words, s.wordbooks, nil).ImportWords(ctx, 1, "청사진, 설계도")
	require.NoError(t, err)
	assert.Len(t, dict.batches, 1)
	assert.Equal(t, []string{"청사진", "설계도"}, fd.lookups)
}
