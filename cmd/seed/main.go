// Command seed loads categories, books and exam subjects from a YAML file.
// Rerunning it updates existing rows instead of duplicating them.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/muluken16/E-liberary/internal/config"
	"github.com/muluken16/E-liberary/internal/database"
	"github.com/muluken16/E-liberary/internal/logger"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/repository"
)

type seedFile struct {
	Categories []struct {
		Name          string   `yaml:"name"`
		SubCategories []string `yaml:"sub_categories"`
	} `yaml:"categories"`
	Books    []seedBook    `yaml:"books"`
	Subjects []seedSubject `yaml:"subjects"`
}

type seedBook struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	BookType    string `yaml:"book_type"`
	Language    string `yaml:"language"`
	GradeLevel  string `yaml:"grade_level"`
	HardPrice   string `yaml:"hard_price"`
	SoftPrice   string `yaml:"soft_price"`
	RentalPrice string `yaml:"rental_price_per_week"`
	ForSale     bool   `yaml:"for_sale"`
	ForRent     bool   `yaml:"for_rent"`
	Featured    bool   `yaml:"featured"`
}

type seedSubject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	TimeMinutes int    `yaml:"time_minutes"`
	Questions   []struct {
		Question      string   `yaml:"question"`
		Options       []string `yaml:"options"`
		CorrectOption string   `yaml:"correct_option"`
		Explain       string   `yaml:"explain"`
	} `yaml:"questions"`
}

func parseSeed(data []byte) (*seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

func price(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", s)
	}
	return d.Round(2), nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// toBook converts a seed entry; categoryID may be nil.
func (b seedBook) toBook(categoryID *uint64) (*model.Book, error) {
	bt := strings.ToLower(b.BookType)
	if !model.ValidBookType(bt) {
		return nil, fmt.Errorf("book %q: invalid book_type %q", b.Title, b.BookType)
	}
	hard, err := price(b.HardPrice)
	if err != nil {
		return nil, fmt.Errorf("book %q hard_price: %w", b.Title, err)
	}
	soft, err := price(b.SoftPrice)
	if err != nil {
		return nil, fmt.Errorf("book %q soft_price: %w", b.Title, err)
	}
	rent, err := price(b.RentalPrice)
	if err != nil {
		return nil, fmt.Errorf("book %q rental_price_per_week: %w", b.Title, err)
	}
	lang := b.Language
	if lang == "" {
		lang = "English"
	}
	return &model.Book{
		Title: b.Title, Author: b.Author, Description: optional(b.Description), CategoryID: categoryID,
		BookType: bt, Language: lang, GradeLevel: b.GradeLevel,
		HardPrice: hard, SoftPrice: soft, RentalPricePerWeek: rent,
		IsForSale: b.ForSale, IsForRent: b.ForRent, IsActive: true, IsFeatured: b.Featured,
	}, nil
}

func (s seedSubject) questions() []model.Question {
	out := make([]model.Question, 0, len(s.Questions))
	for _, q := range s.Questions {
		out = append(out, model.Question{
			Text: q.Question, Options: q.Options,
			CorrectOption: optional(q.CorrectOption), Explain: optional(q.Explain),
		})
	}
	return out
}

func run(ctx context.Context, db *sql.DB, f *seedFile, log zerolog.Logger) error {
	cats := repository.NewCategoryRepo(db)
	books := repository.NewBookRepo(db)
	quizzes := repository.NewQuizRepo(db)
	tx := database.SQLTx{DB: db}

	ids := map[string]uint64{}
	for _, c := range f.Categories {
		id, err := cats.Ensure(ctx, c.Name)
		if err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		ids[c.Name] = id
		for _, sub := range c.SubCategories {
			if _, err := cats.EnsureSub(ctx, id, sub); err != nil {
				return fmt.Errorf("sub-category %q: %w", sub, err)
			}
		}
	}
	for _, sb := range f.Books {
		var catID *uint64
		if id, ok := ids[sb.Category]; ok {
			catID = &id
		}
		b, err := sb.toBook(catID)
		if err != nil {
			return err
		}
		if err := books.Upsert(ctx, b); err != nil {
			return fmt.Errorf("book %q: %w", b.Title, err)
		}
	}
	for _, s := range f.Subjects {
		id, err := quizzes.EnsureSubject(ctx, s.Name, optional(s.Description), s.TimeMinutes)
		if err != nil {
			return fmt.Errorf("subject %q: %w", s.Name, err)
		}
		qs := s.questions()
		if err := tx.WithTx(ctx, func(t *sql.Tx) error {
			return quizzes.ReplaceQuestions(ctx, t, id, qs)
		}); err != nil {
			return fmt.Errorf("questions for %q: %w", s.Name, err)
		}
	}
	log.Info().Int("categories", len(f.Categories)).Int("books", len(f.Books)).
		Int("subjects", len(f.Subjects)).Msg("seed applied")
	return nil
}

func main() {
	path := flag.String("file", "seed/catalog.yaml", "seed file")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Env).With().Str("app", "seed").Logger()

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("read seed file")
	}
	f, err := parseSeed(data)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid seed file")
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := run(ctx, db, f, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}
