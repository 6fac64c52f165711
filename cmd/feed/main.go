package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/feedapp/feedclient/internal/adapters/rest"
	"github.com/feedapp/feedclient/internal/adapters/storage"
	"github.com/feedapp/feedclient/internal/core/ports"
	"github.com/feedapp/feedclient/internal/core/services"
)

const usage = `Usage: feed <command> [args]

Commands:
  register <username> <email> <password>
  login <email> <password>
  logout
  whoami
  verify-email <token>
  user <id>
  posts
  post <text>
  edit <post-id> <text>
  rm <post-id>
  like <post-id>
  unlike <post-id>
  comments <post-id>
  comment <post-id> <text>
`

type app struct {
	session  ports.SessionService
	feed     ports.FeedService
	comments ports.CommentService
	users    ports.UserAPI
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var apiURL, configDir string
	var verbose bool

	flag.StringVar(&apiURL, "api-url", envOr("FEED_API_URL", "http://127.0.0.1:8000/api"), "Backend API base URL")
	flag.StringVar(&configDir, "config-dir", os.Getenv("FEED_CONFIG_DIR"), "Directory for persisted tokens")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			log.Fatal(err)
		}
	}
	defer logger.Sync()

	if configDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			log.Fatal(err)
		}
		configDir = filepath.Join(base, "feed")
	}

	store, err := storage.NewFileTokenStore(configDir)
	if err != nil {
		log.Fatal(err)
	}

	client := rest.NewClient(apiURL, logger)
	tokens, err := services.NewTokenManager(store, client, logger)
	if err != nil {
		log.Fatal(err)
	}
	api := rest.NewAuthClient(client, tokens)

	feed := services.NewFeedService(api, api, logger)
	comments := services.NewCommentService(api, feed, logger)
	session := services.NewSessionService(api, tokens, feed, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := &app{session: session, feed: feed, comments: comments, users: api}
	if err := a.run(ctx, args[0], args[1:]); err != nil {
		log.Fatal(err)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		if len(args) != 3 {
			return fmt.Errorf("usage: register <username> <email> <password>")
		}
		session, err := a.session.Register(ctx, ports.RegisterInput{
			Username: args[0],
			Email:    args[1],
			Password: args[2],
		})
		if err != nil {
			return err
		}
		fmt.Printf("registered as %s\n", session.User.Username)
		return nil

	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <email> <password>")
		}
		session, err := a.session.Login(ctx, ports.LoginInput{Email: args[0], Password: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s\n", session.User.Username)
		return nil

	case "logout":
		if err := a.session.Logout(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "whoami":
		session, err := a.session.Resume(ctx)
		if err != nil {
			return err
		}
		if !session.IsAuthenticated {
			fmt.Println("not logged in")
			return nil
		}
		fmt.Printf("%s <%s>\n", session.User.Username, session.User.Email)
		return nil

	case "verify-email":
		if len(args) != 1 {
			return fmt.Errorf("usage: verify-email <token>")
		}
		result, err := a.session.VerifyEmail(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(result.Message)
		return nil

	case "user":
		return a.showUser(ctx, args)

	case "posts":
		return a.listPosts(ctx)

	case "post":
		if len(args) != 1 {
			return fmt.Errorf("usage: post <text>")
		}
		post, err := a.feed.CreatePost(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created post %s\n", post.ID)
		return nil

	case "edit":
		if len(args) != 2 {
			return fmt.Errorf("usage: edit <post-id> <text>")
		}
		post, err := a.feed.UpdatePost(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("updated post %s\n", post.ID)
		return nil

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: rm <post-id>")
		}
		if _, err := a.feed.DeletePost(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil

	case "like":
		if len(args) != 1 {
			return fmt.Errorf("usage: like <post-id>")
		}
		// Rebuild the like set so the toggle flips in the right direction.
		if _, err := a.session.Resume(ctx); err != nil {
			return err
		}
		result, err := a.feed.ToggleLike(ctx, args[0])
		if err != nil {
			return err
		}
		switch {
		case result.Committed && a.feed.Liked(args[0]):
			fmt.Println("liked")
		case result.Committed:
			fmt.Println("unliked")
		default:
			fmt.Println("post is gone, feed refreshed")
		}
		return nil

	case "unlike":
		if len(args) != 1 {
			return fmt.Errorf("usage: unlike <post-id>")
		}
		if _, err := a.session.Resume(ctx); err != nil {
			return err
		}
		if !a.feed.Liked(args[0]) {
			fmt.Println("not liked")
			return nil
		}
		if _, err := a.feed.ToggleLike(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("unliked")
		return nil

	case "comments":
		return a.listComments(ctx, args)

	case "comment":
		if len(args) != 2 {
			return fmt.Errorf("usage: comment <post-id> <text>")
		}
		comment, err := a.comments.CreateComment(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("commented as %s\n", comment.Username)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) listPosts(ctx context.Context) error {
	if _, err := a.session.Resume(ctx); err != nil {
		return err
	}

	posts, err := a.feed.Posts(ctx)
	if err != nil {
		return err
	}
	for _, post := range posts {
		marker := " "
		if a.feed.Liked(post.ID) {
			marker = "*"
		}
		fmt.Printf("%s %s  @%s  %s  (%d likes, %d comments)\n",
			marker, post.ID, post.Username, post.Text, post.LikeCount, post.CommentCount)
	}
	return nil
}

func (a *app) listComments(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: comments <post-id>")
	}
	comments, err := a.comments.Comments(ctx, args[0])
	if err != nil {
		return err
	}
	for _, comment := range comments {
		fmt.Printf("@%s  %s\n", comment.Username, comment.Text)
	}
	return nil
}

func (a *app) showUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: user <id>")
	}

	user, err := a.users.GetUser(ctx, args[0])
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Println("user not found")
		return nil
	}
	fmt.Printf("%s <%s>\n", user.Username, user.Email)
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
