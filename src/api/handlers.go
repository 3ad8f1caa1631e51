package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/govcurator/src/archive"
	"github.com/stake-plus/govcurator/src/curation"
)

const defaultPageSize = 50

type entryResponse struct {
	ChannelID int64 `json:"channel_id,string"`
	MessageID int64 `json:"message_id,string"`
	archive.Entry
}

func toEntryResponse(e archive.Entry) entryResponse {
	return entryResponse{ChannelID: e.ChannelID, MessageID: e.MessageID, Entry: e}
}

// Entries serves the research archive.
type Entries struct {
	store *archive.Store
}

func NewEntries(store *archive.Store) Entries {
	return Entries{store: store}
}

func (h Entries) List(c *gin.Context) {
	var req struct {
		Limit  int `form:"limit"  binding:"omitempty,min=1,max=200"`
		Offset int `form:"offset" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultPageSize
	}

	entries, err := h.store.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "limit": req.Limit, "offset": req.Offset})
}

func (h Entries) Get(c *gin.Context) {
	channelID, messageID, ok := messageParams(c)
	if !ok {
		return
	}
	e, err := h.store.Get(c.Request.Context(), channelID, messageID)
	if errors.Is(err, archive.ErrNoEntry) {
		c.JSON(http.StatusNotFound, gin.H{"err": "entry not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toEntryResponse(e))
}

// Messages reports where a tracked message is in the workflow.
type Messages struct {
	repo *curation.Repository
}

func NewMessages(repo *curation.Repository) Messages {
	return Messages{repo: repo}
}

func (h Messages) Status(c *gin.Context) {
	channelID, messageID, ok := messageParams(c)
	if !ok {
		return
	}
	m, found, err := h.repo.Message(channelID, messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"err": "message not tracked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"channel_id": strconv.FormatInt(m.ChannelID, 10),
		"message_id": strconv.FormatInt(m.MessageID, 10),
		"status":     m.Status.String(),
		"comments":   len(m.Comments),
	})
}

func messageParams(c *gin.Context) (int64, int64, bool) {
	channelID, err := strconv.ParseInt(c.Param("channel"), 10, 64)
	if err != nil || channelID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid channel id"})
		return 0, 0, false
	}
	messageID, err := strconv.ParseInt(c.Param("message"), 10, 64)
	if err != nil || messageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid message id"})
		return 0, 0, false
	}
	return channelID, messageID, true
}
