package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultSystemPrompt = "You are an experienced car mechanic who helps drivers diagnose problems with their vehicle."

// AIChatRequest accepts either a full conversation or a single problem statement
type AIChatRequest struct {
	Messages []models.ChatMessage `json:"messages" binding:"omitempty,max=50,dive"`
	Problem  string               `json:"problem" binding:"max=4000"`
	Text     string               `json:"text" binding:"max=4000"`
}

// RecommendRequest represents the request body for a workshop recommendation
type RecommendRequest struct {
	ServiceCategory string `json:"service_category" binding:"required,max=60"`
	City            string `json:"city" binding:"max=100"`
}

func systemPrompt() string {
	if cfg := config.GetConfig(); cfg != nil && cfg.LLMSystemPrompt != "" {
		return cfg.LLMSystemPrompt
	}
	return defaultSystemPrompt
}

// AIChat handles POST /api/v1/ai - forwards the conversation to the LLM and
// returns the assistant reply
func AIChat(c *gin.Context) {
	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	problem := req.Problem
	if strings.TrimSpace(problem) == "" {
		problem = req.Text
	}

	conversation, err := services.BuildConversation(systemPrompt(), req.Messages, problem)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Provide messages or a problem description")
		return
	}

	llm := services.GetLLMService()
	if llm == nil {
		respondError(c, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "The assistant is temporarily unavailable")
		return
	}

	reply, err := llm.Reply(c.Request.Context(), conversation)
	if err != nil {
		if errors.Is(err, services.ErrLLMUnavailable) {
			respondError(c, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "The assistant is temporarily unavailable")
			return
		}
		zap.L().Warn("assistant request failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "AI_UPSTREAM_ERROR", "The assistant could not answer right now")
		return
	}

	respondOK(c, http.StatusOK, gin.H{"reply": reply})
}

// RecommendWorkshop handles POST /api/v1/ai/recommend - picks the best active
// workshop for the diagnosed service category
func RecommendWorkshop(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	var workshops []models.Workshop
	if err := config.GetDB().Where("status = ?", models.WorkshopActive).Find(&workshops).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch workshops")
		return
	}

	best, ok := services.RecommendWorkshop(workshops, req.ServiceCategory, req.City)
	if !ok {
		respondError(c, http.StatusNotFound, "NO_WORKSHOP_FOUND", "No workshop available for this request")
		return
	}

	withPhotoURLs(c.Request.Context(), best)
	respondOK(c, http.StatusOK, best)
}
