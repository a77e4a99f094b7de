package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"medschool-core/internal/course"
	"medschool-core/internal/errs"
)

// listRequest is the shared inbound shape for the two C2-backed home
// endpoints: a single filter id naming the catalogue slice to list.
type listRequest struct {
	ID string `json:"id"`
}

// ArticleList handles POST /api/v1/home/article-list (§6 cache key
// "article_list_{article_id}"). Articles share the course catalogue's
// read model in this core (§3 Non-goals: no separate relational
// model), so the filter id selects by medical department.
func (h *Handler) ArticleList(c *gin.Context) {
	h.listThroughCache(c, "article_list_%s")
}

// CourseList handles POST /api/v1/home/course-list, the second cache
// key family sharing C2's algorithm with a distinct prefix.
func (h *Handler) CourseList(c *gin.Context) {
	h.listThroughCache(c, "course_list_%s")
}

func (h *Handler) listThroughCache(c *gin.Context, keyFormat string) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}
	if req.ID == "" {
		req.ID = "0"
	}
	key := fmt.Sprintf(keyFormat, req.ID)

	records, err := h.cache.Get(c.Request.Context(), key, func(ctx context.Context) ([]string, error) {
		return h.loadCourseRecords(req.ID)
	})
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]course.Course, 0, len(records))
	for _, rec := range records {
		var item course.Course
		if err := json.Unmarshal([]byte(rec), &item); err != nil {
			writeError(c, errs.Wrap(errs.KindInternal, err, "decode cached course record"))
			return
		}
		items = append(items, item)
	}
	writeOK(c, errs.Paged{Items: items, Total: int64(len(items)), Page: 1, Size: len(items)})
}

// loadCourseRecords is C2's Loader: the source-of-truth read that
// only runs on a cache miss, filtered to active courses in the
// requested department (id="0" means unfiltered).
func (h *Handler) loadCourseRecords(department string) ([]string, error) {
	all, err := h.courses.All()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "load course catalogue")
	}
	records := make([]string, 0, len(all))
	for _, c := range all {
		if !c.Active() {
			continue
		}
		if department != "0" && c.MedicalDepartment != department {
			continue
		}
		encoded, err := json.Marshal(c)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "encode course record")
		}
		records = append(records, string(encoded))
	}
	return records, nil
}
