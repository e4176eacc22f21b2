package main

import (
	"time"

	"github.com/modsentinel/automod/internal/moderation/model"
)

// webhookSubject is the wire shape the host platform posts for a
// PostSubmit/CommentSubmit trigger. Fields map onto model.Subject.
type webhookSubject struct {
	ContentID   string    `json:"contentId" binding:"required"`
	AuthorID    string    `json:"authorId" binding:"required"`
	AuthorName  string    `json:"authorName"`
	Subreddit   string    `json:"subreddit" binding:"required"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ContentType string    `json:"contentType" binding:"required"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (w webhookSubject) toModel() model.Subject {
	return model.Subject{
		ContentID:   w.ContentID,
		AuthorID:    w.AuthorID,
		AuthorName:  w.AuthorName,
		Subreddit:   w.Subreddit,
		Title:       w.Title,
		Body:        w.Body,
		ContentType: model.ContentType(w.ContentType),
		CreatedAt:   w.CreatedAt,
	}
}

type webhookUserProfile struct {
	UserID         string `json:"userId" binding:"required"`
	Username       string `json:"username"`
	AccountAgeDays int    `json:"accountAgeDays"`
	TotalKarma     int    `json:"totalKarma"`
	EmailVerified  bool   `json:"emailVerified"`
	IsModerator    bool   `json:"isModerator"`
	HasFlair       bool   `json:"hasFlair"`
	IsPremium      bool   `json:"isPremium"`
	IsVerified     bool   `json:"isVerified"`
}

func (w webhookUserProfile) toModel() model.UserProfile {
	return model.UserProfile{
		UserID:         w.UserID,
		Username:       w.Username,
		AccountAgeDays: w.AccountAgeDays,
		TotalKarma:     w.TotalKarma,
		EmailVerified:  w.EmailVerified,
		IsModerator:    w.IsModerator,
		HasFlair:       w.HasFlair,
		IsPremium:      w.IsPremium,
		IsVerified:     w.IsVerified,
	}
}

type webhookHistoryItem struct {
	Type      string    `json:"type"`
	Subreddit string    `json:"subreddit"`
	Content   string    `json:"content"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type webhookPostHistory struct {
	Items         []webhookHistoryItem `json:"items"`
	TotalPosts    int                  `json:"totalPosts"`
	TotalComments int                  `json:"totalComments"`
}

func (w webhookPostHistory) toModel() model.PostHistory {
	items := make([]model.HistoryItem, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, model.HistoryItem{
			Type:      model.ContentType(item.Type),
			Subreddit: item.Subreddit,
			Content:   item.Content,
			Score:     item.Score,
			CreatedAt: item.CreatedAt,
		})
	}
	history := model.PostHistory{
		Items:         items,
		TotalPosts:    w.TotalPosts,
		TotalComments: w.TotalComments,
	}
	return history.Truncate()
}

// submitTriggerRequest is the body of a PostSubmit/CommentSubmit webhook.
type submitTriggerRequest struct {
	Subject webhookSubject     `json:"subject"`
	Profile webhookUserProfile `json:"profile"`
	History webhookPostHistory `json:"history"`
}

// modActionRequest is the body of a ModAction webhook: a moderator acted on
// content the cascade previously evaluated.
type modActionRequest struct {
	Action    string `json:"action" binding:"required"`
	ContentID string `json:"contentId" binding:"required"`
	Subreddit string `json:"subreddit" binding:"required"`
	ModName   string `json:"modName"`
}

// appInstallRequest is the body of an AppInstall webhook: a moderator
// installed or reconfigured the plugin on a subreddit.
type appInstallRequest struct {
	Subreddit string         `json:"subreddit" binding:"required"`
	Settings  model.Settings `json:"settings"`
}
