package notificationRepo

import (
	"testing"
	"time"

	"pwashop/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestListOptionsNormalize(t *testing.T) {
	o := ListOptions{}.Normalize()
	assert.Equal(t, int64(1), o.Page)
	assert.Equal(t, int64(20), o.Limit)
	assert.Equal(t, int64(0), o.Skip())

	o = ListOptions{Page: 3, Limit: 500}.Normalize()
	assert.Equal(t, int64(100), o.Limit)
	assert.Equal(t, int64(200), o.Skip())
}

func TestListFilter(t *testing.T) {
	uid := primitive.NewObjectID()
	assert.NotContains(t, ListFilter(uid, false), "read")
	assert.Equal(t, false, ListFilter(uid, true)["read"])
}

func TestStampDefaults(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := models.Notification{Title: "t"}
	stamp(&n, now)

	assert.False(t, n.ID.IsZero())
	assert.Equal(t, models.NotificationGeneral, n.Type)
	assert.NotNil(t, n.Data)
	assert.Equal(t, now, n.CreatedAt)
	assert.Equal(t, now, n.UpdatedAt)
}
