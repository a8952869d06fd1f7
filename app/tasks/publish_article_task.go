package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-press/app/metrics"
	"github.com/lysyi3m/rss-press/app/rewriter"
	"github.com/lysyi3m/rss-press/app/tagger"
	"github.com/lysyi3m/rss-press/app/wordpress"
)

// PublishArticleTask rewrites, tags and publishes a stored article, then marks
// it processed. Rewrite and tagging failures degrade to the original text and
// no tags.
type PublishArticleTask struct {
	Task
	ArticleID int64
	svc       *Services
}

func NewPublishArticleTask(articleID int64, feedName string, svc *Services) *PublishArticleTask {
	return &PublishArticleTask{
		Task:      NewTask(TaskTypePublishArticle, feedName),
		ArticleID: articleID,
		svc:       svc,
	}
}

func (t *PublishArticleTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if t.svc.Publisher == nil {
		slog.Debug("Publishing disabled, article left pending", "article_id", t.ArticleID)
		return nil
	}

	article, err := t.svc.Articles.GetArticle(ctx, t.ArticleID)
	if err != nil {
		return fmt.Errorf("failed to load article: %w", err)
	}
	if article == nil {
		return fmt.Errorf("article %d not found", t.ArticleID)
	}
	if article.IsProcessed {
		slog.Debug("Article already processed", "article_id", article.ID, "url", article.URL)
		return nil
	}

	store := context.WithoutCancel(ctx)

	if article.PostID != nil {
		exists, err := t.svc.Publisher.PostExists(ctx, *article.PostID)
		if err != nil {
			return fmt.Errorf("failed to verify existing post: %w", err)
		}
		if exists {
			if err := t.svc.Articles.MarkArticleProcessed(store, article.ID); err != nil {
				return fmt.Errorf("failed to mark article processed: %w", err)
			}
			metrics.RecordPublish("skipped")
			slog.Info("Article already published, skipping", "article_id", article.ID, "post_id", *article.PostID, "url", article.URL)
			return nil
		}
		slog.Warn("Published post is gone, publishing again", "article_id", article.ID, "post_id", *article.PostID)
	}

	title := article.Title
	paragraphs := strings.Split(article.Content, "\n\n")
	var disclosure *wordpress.Disclosure

	if t.svc.Rewriter != nil {
		result, err := t.svc.Rewriter.Rewrite(ctx, rewriter.Source{Title: article.Title, Content: article.Content, URL: article.URL})
		if err != nil {
			slog.Warn("Rewrite failed, using original content", "article_id", article.ID, "url", article.URL, "error", err)
		} else {
			title, paragraphs = result.Title, result.Paragraphs
			disclosure = &wordpress.Disclosure{GeneratedBy: t.svc.Rewriter.Model(), GeneratedAt: t.svc.now()}
		}
	}

	var tags []string
	if t.svc.Tagger != nil {
		generated, err := t.svc.Tagger.Generate(ctx, tagger.Input{
			Title:      title,
			Content:    strings.Join(paragraphs, "\n\n"),
			Categories: article.Categories,
		})
		if err != nil {
			slog.Warn("Tag generation failed, publishing without tags", "article_id", article.ID, "error", err)
		} else if len(generated) > 0 {
			tags, err = t.svc.Tags.AddArticleTags(store, article.ID, generated)
			if err != nil {
				slog.Warn("Failed to store article tags", "article_id", article.ID, "error", err)
				tags = generated
			}
		}
	}

	post := wordpress.Post{
		Title:      title,
		Paragraphs: paragraphs,
		Author:     article.Author,
		SourceURL:  article.URL,
		Date:       t.svc.now(),
		Tags:       tags,
		Disclosure: disclosure,
	}
	if article.PublishedAt != nil {
		post.Date = *article.PublishedAt
	}

	postID, err := t.svc.Publisher.Publish(ctx, post)
	if err != nil {
		metrics.RecordPublish("failed")
		return fmt.Errorf("failed to publish article: %w", err)
	}

	if err := t.storePostID(store, article.ID, postID); err != nil {
		slog.Error("Published post id could not be stored",
			"article_id", article.ID, "post_id", postID, "url", article.URL, "error", err)
		return fmt.Errorf("failed to store post id: %w", err)
	}
	if err := t.svc.Articles.MarkArticleProcessed(store, article.ID); err != nil {
		return fmt.Errorf("failed to mark article processed: %w", err)
	}
	metrics.RecordPublish("published")

	slog.Info("Task completed",
		"type", "PublishArticle",
		"feed", t.FeedName,
		"article_id", article.ID,
		"post_id", postID,
		"rewritten", disclosure != nil,
		"tags", len(tags),
		"duration", t.GetDuration())

	return nil
}

// storePostID retries once, the post already exists remotely and a lost id
// means a duplicate on the next run.
func (t *PublishArticleTask) storePostID(ctx context.Context, articleID, postID int64) error {
	err := t.svc.Articles.SetArticlePostID(ctx, articleID, postID)
	if err == nil {
		return nil
	}
	slog.Warn("Failed to store post id, retrying", "article_id", articleID, "post_id", postID, "error", err)
	return t.svc.Articles.SetArticlePostID(ctx, articleID, postID)
}
