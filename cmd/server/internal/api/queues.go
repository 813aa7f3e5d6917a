package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
	"github.com/houzhh15/mergeq/cmd/server/internal/models"
)

func queuePath(queueID string) string {
	return "queues/" + queueID
}

// immutable document fields that clients may not overwrite on update
var protectedFields = []string{"id", "createdBy", "dateCreated"}

func stripProtected(fields map[string]any) {
	for _, f := range protectedFields {
		delete(fields, f)
	}
}

// HandleListQueues GET /api/v1/queues
func HandleListQueues(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snaps, err := store.List(c.Request.Context(), "queues")
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		queues := make([]models.Queue, 0, len(snaps))
		for _, snap := range snaps {
			var q models.Queue
			if err := snap.Decode(&q); err != nil {
				internalErrorResponse(c, err)
				return
			}
			queues = append(queues, q)
		}
		successResponse(c, gin.H{"queues": queues})
	}
}

// HandleCreateQueue POST /api/v1/queues
func HandleCreateQueue(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.Queue
		if err := c.ShouldBindJSON(&q); err != nil {
			badRequestResponse(c, "invalid request body")
			return
		}
		if q.Name == "" {
			badRequestResponse(c, "name is required")
			return
		}

		now := time.Now().UTC()
		q.ID = uuid.NewString()
		q.Active = true
		q.CreatedBy = currentUserRef(c)
		q.UpdatedBy = q.CreatedBy
		q.DateCreated = &now
		q.DateUpdated = &now

		doc, err := docstore.Encode(q)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if err := store.Set(c.Request.Context(), queuePath(q.ID), doc); err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, q)
	}
}

// HandleGetQueue GET /api/v1/queues/:queueID
func HandleGetQueue(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := store.Get(c.Request.Context(), queuePath(c.Param("queueID")))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if !snap.Exists() {
			notFoundResponse(c, "queue")
			return
		}

		var q models.Queue
		if err := snap.Decode(&q); err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, q)
	}
}

// HandleUpdateQueue PUT /api/v1/queues/:queueID
// Merges the submitted fields into the stored document. Audit fields are
// stamped server-side and cannot be supplied by the client.
func HandleUpdateQueue(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			badRequestResponse(c, "invalid request body")
			return
		}

		stripProtected(fields)
		fields["updatedBy"] = currentUserRef(c)
		fields["dateUpdated"] = time.Now().UTC()

		err := store.Update(c.Request.Context(), queuePath(c.Param("queueID")), fields)
		if errors.Is(err, docstore.ErrNotFound) {
			notFoundResponse(c, "queue")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{"message": "queue updated"})
	}
}

// HandleDeleteQueue DELETE /api/v1/queues/:queueID
// Default is a soft delete that clears the active flag; ?hard=true removes
// the document.
func HandleDeleteQueue(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := queuePath(c.Param("queueID"))

		if c.Query("hard") == "true" {
			if err := store.Delete(c.Request.Context(), path); err != nil {
				internalErrorResponse(c, err)
				return
			}
			successResponse(c, gin.H{"message": "queue deleted"})
			return
		}

		err := store.Update(c.Request.Context(), path, map[string]any{
			"active":      false,
			"updatedBy":   currentUserRef(c),
			"dateUpdated": time.Now().UTC(),
		})
		if errors.Is(err, docstore.ErrNotFound) {
			notFoundResponse(c, "queue")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{"message": "queue deactivated"})
	}
}
