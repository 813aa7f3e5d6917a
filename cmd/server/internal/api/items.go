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

func itemsCollection(queueID string) string {
	return "queues/" + queueID + "/items"
}

func itemPath(queueID, itemID string) string {
	return itemsCollection(queueID) + "/" + itemID
}

// requireQueue checks that the parent queue exists. Responds 404 and returns
// false when it does not.
func requireQueue(c *gin.Context, store docstore.Store, queueID string) bool {
	snap, err := store.Get(c.Request.Context(), queuePath(queueID))
	if err != nil {
		internalErrorResponse(c, err)
		return false
	}
	if !snap.Exists() {
		notFoundResponse(c, "queue")
		return false
	}
	return true
}

// HandleListItems GET /api/v1/queues/:queueID/items
func HandleListItems(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queueID := c.Param("queueID")
		if !requireQueue(c, store, queueID) {
			return
		}

		snaps, err := store.List(c.Request.Context(), itemsCollection(queueID))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		items := make([]models.QueueItem, 0, len(snaps))
		for _, snap := range snaps {
			var item models.QueueItem
			if err := snap.Decode(&item); err != nil {
				internalErrorResponse(c, err)
				return
			}
			items = append(items, item)
		}
		successResponse(c, gin.H{"items": items})
	}
}

// HandleCreateItem POST /api/v1/queues/:queueID/items
// Writing the document fires the queue item change trigger.
func HandleCreateItem(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queueID := c.Param("queueID")
		if !requireQueue(c, store, queueID) {
			return
		}

		var item models.QueueItem
		if err := c.ShouldBindJSON(&item); err != nil {
			badRequestResponse(c, "invalid request body")
			return
		}

		now := time.Now().UTC()
		item.ID = uuid.NewString()
		item.QueueID = queueID
		item.Active = true
		item.CreatedBy = currentUserRef(c)
		item.UpdatedBy = item.CreatedBy
		item.DateCreated = &now
		item.DateUpdated = &now

		doc, err := docstore.Encode(item)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if err := store.Set(c.Request.Context(), itemPath(queueID, item.ID), doc); err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// HandleGetItem GET /api/v1/queues/:queueID/items/:itemID
func HandleGetItem(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := store.Get(c.Request.Context(), itemPath(c.Param("queueID"), c.Param("itemID")))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if !snap.Exists() {
			notFoundResponse(c, "item")
			return
		}

		var item models.QueueItem
		if err := snap.Decode(&item); err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, item)
	}
}

// HandleUpdateItem PUT /api/v1/queues/:queueID/items/:itemID
// Merges the submitted fields into the stored document and fires the
// change trigger with the before and after snapshots.
func HandleUpdateItem(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			badRequestResponse(c, "invalid request body")
			return
		}

		stripProtected(fields)
		delete(fields, "queueId")
		fields["updatedBy"] = currentUserRef(c)
		fields["dateUpdated"] = time.Now().UTC()

		err := store.Update(c.Request.Context(), itemPath(c.Param("queueID"), c.Param("itemID")), fields)
		if errors.Is(err, docstore.ErrNotFound) {
			notFoundResponse(c, "item")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{"message": "item updated"})
	}
}

// HandleDeleteItem DELETE /api/v1/queues/:queueID/items/:itemID
// Default is a soft delete that clears the active flag; ?hard=true removes
// the document, which notifies as a deletion.
func HandleDeleteItem(store docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := itemPath(c.Param("queueID"), c.Param("itemID"))

		if c.Query("hard") == "true" {
			if err := store.Delete(c.Request.Context(), path); err != nil {
				internalErrorResponse(c, err)
				return
			}
			successResponse(c, gin.H{"message": "item deleted"})
			return
		}

		err := store.Update(c.Request.Context(), path, map[string]any{
			"active":      false,
			"updatedBy":   currentUserRef(c),
			"dateUpdated": time.Now().UTC(),
		})
		if errors.Is(err, docstore.ErrNotFound) {
			notFoundResponse(c, "item")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{"message": "item deactivated"})
	}
}
