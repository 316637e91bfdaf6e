// Command seed fills a development database with users, articles and comments.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

type summary struct {
	UsersCreated  int    `json:"users_created"`
	UsersExisting int    `json:"users_existing"`
	Articles      int    `json:"articles"`
	Comments      int    `json:"comments"`
	Password      string `json:"password"`
	SampleEmail   string `json:"sample_email"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		users       = flag.Int("users", 50, "Number of users")
		articles    = flag.Int("articles", 50, "Number of articles")
		minComments = flag.Int("min-comments", 3, "Minimum comments per article")
		maxComments = flag.Int("max-comments", 7, "Maximum comments per article")
		password    = flag.String("password", "password", "Password shared by every seeded user")
		migrate     = flag.Bool("migrate", false, "Apply migrations before seeding")
		seed        = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *users < 1 || *articles < 0 || *minComments < 0 || *maxComments < *minComments {
		fmt.Fprintln(os.Stderr, "invalid counts: need users >= 1 and 0 <= min-comments <= max-comments")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if *migrate {
		if err := repo.Migrate(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	s := &seeder{
		repo: repo,
		gen:  newGenerator(*seed),
		now:  time.Now().UTC(),
	}

	out, err := s.run(ctx, *users, *articles, *minComments, *maxComments, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("users: %d created, %d existing\narticles: %d\ncomments: %d\nlogin: %s / %s\n",
			out.UsersCreated, out.UsersExisting, out.Articles, out.Comments, out.SampleEmail, out.Password)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

type seedStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateArticle(ctx context.Context, a *model.Article) error
	CreateComment(ctx context.Context, c *model.Comment) error
}

type seeder struct {
	repo seedStore
	gen  *generator
	now  time.Time
}

func (s *seeder) run(ctx context.Context, users, articles, minComments, maxComments int, password string) (*summary, error) {
	// Every seeded user shares one hash.
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	out := &summary{Password: password}
	userIDs := make([]string, 0, users)
	for i := 1; i <= users; i++ {
		email := seedEmail(i)
		id, created, err := s.ensureUser(ctx, email, s.gen.name(), hash)
		if err != nil {
			return nil, err
		}
		if created {
			out.UsersCreated++
		} else {
			out.UsersExisting++
		}
		if out.SampleEmail == "" {
			out.SampleEmail = email
		}
		userIDs = append(userIDs, id)
	}

	for i := 0; i < articles; i++ {
		at := s.now.Add(-time.Duration(articles-i) * time.Minute)
		article := &model.Article{
			ID:        ulid.Make().String(),
			Title:     s.gen.title(),
			Content:   s.gen.paragraphs(3),
			UserID:    userIDs[s.gen.intN(len(userIDs))],
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := s.repo.CreateArticle(ctx, article); err != nil {
			return nil, fmt.Errorf("create article: %w", err)
		}
		out.Articles++

		n := minComments + s.gen.intN(maxComments-minComments+1)
		for j := 0; j < n; j++ {
			cat := at.Add(time.Duration(j+1) * time.Second)
			comment := &model.Comment{
				ID:        ulid.Make().String(),
				Content:   s.gen.comment(),
				UserID:    userIDs[s.gen.intN(len(userIDs))],
				ArticleID: article.ID,
				CreatedAt: cat,
				UpdatedAt: cat,
			}
			if err := s.repo.CreateComment(ctx, comment); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			out.Comments++
		}
	}

	return out, nil
}

// ensureUser reuses an account from an earlier run so seeding can be repeated.
func (s *seeder) ensureUser(ctx context.Context, email, name, hash string) (string, bool, error) {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return "", false, fmt.Errorf("look up %s: %w", email, err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return "", false, fmt.Errorf("create user %s: %w", email, err)
	}
	return user.ID, true, nil
}

func seedEmail(i int) string {
	return fmt.Sprintf("user%03d@seed.inkpost.local", i)
}

// generator produces placeholder text that satisfies the field limits.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Ken", "Margaret", "Dennis", "Frances", "Niklaus"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Thompson", "Hamilton", "Ritchie", "Allen", "Wirth"}
	words      = strings.Fields("lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam quis nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat")
)

func (g *generator) intN(n int) int {
	return g.rng.IntN(n)
}

func (g *generator) name() string {
	return firstNames[g.intN(len(firstNames))] + " " + lastNames[g.intN(len(lastNames))]
}

func (g *generator) sentence(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[g.intN(len(words))]
	}
	s := strings.Join(parts, " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func (g *generator) title() string {
	return truncate(g.sentence(3+g.intN(6)), model.MaxTitleLength)
}

func (g *generator) paragraphs(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = g.sentence(20+g.intN(30)) + "."
	}
	return strings.Join(out, "\n\n")
}

// comment returns text between MinCommentLength and MaxCommentLength characters.
func (g *generator) comment() string {
	text := g.sentence(3+g.intN(10)) + "."
	for len(text) < model.MinCommentLength {
		text += " " + words[g.intN(len(words))]
	}
	return truncate(text, model.MaxCommentLength)
}

// truncate cuts s to limit bytes. Generated text is ASCII, so bytes and
// characters agree.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit])
}
