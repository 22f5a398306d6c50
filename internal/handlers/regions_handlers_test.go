package handlers

import (
	"net/http"
	"testing"

	"github.com/findcamp/backend/internal/models"
	"github.com/findcamp/backend/internal/storage"
	"github.com/google/uuid"
)

func TestRegionStore(t *testing.T) {
	t.Run("creates region with image", func(t *testing.T) {
		env := setupTestEnv(t)

		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/regions",
			map[string]string{"name": "Scandinavia"},
			map[string]uploadFile{"image": {name: "fjord.jpg", content: []byte("jpg-bytes")}},
			nil,
		)
		assertStatus(t, resp, http.StatusCreated)

		body := decodeJSONMap(t, resp)
		data := body["data"].(map[string]any)
		if data["name"] != "Scandinavia" {
			t.Errorf("expected name Scandinavia, got %v", data["name"])
		}
		if data["image_url"] == nil || data["image_url"] == "" {
			t.Error("expected a derived image_url")
		}

		key, _ := data["image"].(string)
		if key == "" {
			t.Fatal("expected a stored image key")
		}
		if !blobExists(t, env, storage.BucketRegions, key) {
			t.Error("expected the image blob to be stored")
		}

		var count int64
		env.db.Model(&models.Region{}).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 region row, got %d", count)
		}
	})

	t.Run("rejects missing name and image", func(t *testing.T) {
		env := setupTestEnv(t)

		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/regions", nil, nil, nil)
		assertStatus(t, resp, http.StatusUnprocessableEntity)

		body := decodeJSONMap(t, resp)
		if body["error"] != "Validation failed" {
			t.Errorf("expected Validation failed error, got %v", body["error"])
		}
		messages := body["messages"].(map[string]any)
		if messages["name"] == nil {
			t.Error("expected a name validation message")
		}
		if messages["image"] != "the image field is required" {
			t.Errorf("unexpected image message: %v", messages["image"])
		}
	})

	t.Run("rejects unsupported image format", func(t *testing.T) {
		env := setupTestEnv(t)

		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/regions",
			map[string]string{"name": "Scandinavia"},
			map[string]uploadFile{"image": {name: "notes.txt", content: []byte("plain text")}},
			nil,
		)
		assertStatus(t, resp, http.StatusUnprocessableEntity)

		body := decodeJSONMap(t, resp)
		messages := body["messages"].(map[string]any)
		if messages["image"] != "unsupported image format" {
			t.Errorf("unexpected image message: %v", messages["image"])
		}
		if env.store.Len() != 0 {
			t.Errorf("expected no stored blobs, got %d", env.store.Len())
		}
	})

	t.Run("discards staged blob when the record write fails", func(t *testing.T) {
		env := setupTestEnv(t)

		if err := env.db.Exec(`CREATE TRIGGER regions_insert_fail BEFORE INSERT ON regions
			BEGIN SELECT RAISE(ABORT, 'forced insert failure'); END`).Error; err != nil {
			t.Fatalf("failed installing trigger: %v", err)
		}

		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/regions",
			map[string]string{"name": "Scandinavia"},
			map[string]uploadFile{"image": {name: "fjord.jpg", content: []byte("jpg-bytes")}},
			nil,
		)
		assertStatus(t, resp, http.StatusInternalServerError)

		if env.store.Len() != 0 {
			t.Errorf("expected the staged blob to be discarded, %d blobs remain", env.store.Len())
		}
		var count int64
		env.db.Model(&models.Region{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no region rows, got %d", count)
		}
	})
}

func TestRegionIndexAndShow(t *testing.T) {
	t.Run("lists regions with their countries", func(t *testing.T) {
		env := setupTestEnv(t)

		region := createTestRegion(t, env, "Alps")
		createTestCountry(t, env, "Austria", region["id"].(string), "4.5")
		createTestRegion(t, env, "Balkans")

		resp := performRequest(t, env.app, http.MethodGet, "/api/regions", nil, nil)
		assertStatus(t, resp, http.StatusOK)

		body := decodeJSONMap(t, resp)
		data := body["data"].([]any)
		if len(data) != 2 {
			t.Fatalf("expected 2 regions, got %d", len(data))
		}

		var alps map[string]any
		for _, item := range data {
			entry := item.(map[string]any)
			if entry["name"] == "Alps" {
				alps = entry
			}
		}
		if alps == nil {
			t.Fatal("expected the Alps region in the listing")
		}
		countries, _ := alps["countries"].([]any)
		if len(countries) != 1 {
			t.Fatalf("expected 1 nested country, got %d", len(countries))
		}
		nested := countries[0].(map[string]any)
		if nested["name"] != "Austria" {
			t.Errorf("expected nested country Austria, got %v", nested["name"])
		}
		if nested["image_url"] == nil || nested["image_url"] == "" {
			t.Error("expected nested country image_url to be derived")
		}
	})

	t.Run("shows a single region", func(t *testing.T) {
		env := setupTestEnv(t)
		region := createTestRegion(t, env, "Alps")

		resp := performRequest(t, env.app, http.MethodGet, "/api/regions/"+region["id"].(string), nil, nil)
		assertStatus(t, resp, http.StatusOK)

		body := decodeJSONMap(t, resp)
		data := body["data"].(map[string]any)
		if data["name"] != "Alps" {
			t.Errorf("expected name Alps, got %v", data["name"])
		}
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		env := setupTestEnv(t)

		resp := performRequest(t, env.app, http.MethodGet, "/api/regions/not-a-uuid", nil, nil)
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("returns 404 for an unknown id", func(t *testing.T) {
		env := setupTestEnv(t)

		resp := performRequest(t, env.app, http.MethodGet, "/api/regions/"+uuid.NewString(), nil, nil)
		assertStatus(t, resp, http.StatusNotFound)
	})
}

func TestRegionUpdate(t *testing.T) {
	t.Run("renames without touching the image", func(t *testing.T) {
		env := setupTestEnv(t)
		region := createTestRegion(t, env, "Alps")
		originalKey := region["image"].(string)

		resp := performMultipartRequest(t, env.app, http.MethodPut, "/api/regions/"+region["id"].(string),
			map[string]string{"name": "The Alps"}, nil, nil)
		assertStatus(t, resp, http.StatusOK)

		body := decodeJSONMap(t, resp)
		data := body["data"].(map[string]any)
		if data["name"] != "The Alps" {
			t.Errorf("expected renamed region, got %v", data["name"])
		}
		if data["image"] != originalKey {
			t.Errorf("expected image key unchanged, got %v", data["image"])
		}
		if !blobExists(t, env, storage.BucketRegions, originalKey) {
			t.Error("expected the original blob to survive a rename")
		}
	})

	t.Run("replaces the image and drops the old blob", func(t *testing.T) {
		env := setupTestEnv(t)
		region := createTestRegion(t, env, "Alps")
		originalKey := region["image"].(string)

		resp := performMultipartRequest(t, env.app, http.MethodPut, "/api/regions/"+region["id"].(string),
			map[string]string{"name": "Alps"},
			map[string]uploadFile{"image": {name: "peak.png", content: []byte("png-bytes")}},
			nil,
		)
		assertStatus(t, resp, http.StatusOK)

		body := decodeJSONMap(t, resp)
		data := body["data"].(map[string]any)
		newKey := data["image"].(string)
		if newKey == originalKey {
			t.Fatal("expected a fresh image key")
		}
		if !blobExists(t, env, storage.BucketRegions, newKey) {
			t.Error("expected the replacement blob to be stored")
		}
		if blobExists(t, env, storage.BucketRegions, originalKey) {
			t.Error("expected the replaced blob to be discarded")
		}
	})

	t.Run("keeps the old blob when the record write fails", func(t *testing.T) {
		env := setupTestEnv(t)
		region := createTestRegion(t, env, "Alps")
		originalKey := region["image"].(string)

		if err := env.db.Exec(`CREATE TRIGGER regions_update_fail BEFORE UPDATE ON regions
			BEGIN SELECT RAISE(ABORT, 'forced update failure'); END`).Error; err != nil {
			t.Fatalf("failed installing trigger: %v", err)
		}

		resp := performMultipartRequest(t, env.app, http.MethodPut, "/api/regions/"+region["id"].(string),
			map[string]string{"name": "Alps"},
			map[string]uploadFile{"image": {name: "peak.png", content: []byte("png-bytes")}},
			nil,
		)
		assertStatus(t, resp, http.StatusInternalServerError)

		if !blobExists(t, env, storage.BucketRegions, originalKey) {
			t.Error("expected the original blob to survive the failed update")
		}
		if env.store.Len() != 1 {
			t.Errorf("expected the staged blob to be discarded, %d blobs remain", env.store.Len())
		}

		var stored models.Region
		env.db.First(&stored, "id = ?", region["id"].(string))
		if stored.Image == nil || *stored.Image != originalKey {
			t.Error("expected the record to keep its original image key")
		}
	})

	t.Run("validates the name on update", func(t *testing.T) {
		env := setupTestEnv(t)
		region := createTestRegion(t, env, "Alps")

		resp := performMultipartRequest(t, env.app, http.MethodPut, "/api/regions/"+region["id"].(string), nil, nil, nil)
		assertStatus(t, resp, http.StatusUnprocessableEntity)
	})
}

func TestRegionDestroy(t *testing.T) {
	t.Run("removes the record and its blob", func(t *testing.T) {
		env := setupTestEnv(t)
		region := createTestRegion(t, env, "Alps")
		key := region["image"].(string)

		resp := performRequest(t, env.app, http.MethodDelete, "/api/regions/"+region["id"].(string), nil, nil)
		assertStatus(t, resp, http.StatusNoContent)

		if blobExists(t, env, storage.BucketRegions, key) {
			t.Error("expected the blob to be removed")
		}
		var count int64
		env.db.Model(&models.Region{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no region rows, got %d", count)
		}
	})

	t.Run("returns 404 for an unknown id", func(t *testing.T) {
		env := setupTestEnv(t)

		resp := performRequest(t, env.app, http.MethodDelete, "/api/regions/"+uuid.NewString(), nil, nil)
		assertStatus(t, resp, http.StatusNotFound)
	})
}
