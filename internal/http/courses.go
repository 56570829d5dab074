package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coursehub/internal/domain"
	"coursehub/internal/service"
)

type createCourseRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Price       *float64 `json:"price" binding:"required,gte=0"`
}

type updateCourseRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
}

type createLessonRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	CourseID string `json:"courseId" binding:"required,uuidv7"`
}

type CourseResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Instructor  string  `json:"instructor"`
}

type LessonResponse struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

type ArchiveResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *Handler) createCourse(c *gin.Context) {
	var req createCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	course, err := h.courses.Create(c.Request.Context(), mustIdentity(c).UserID, service.CourseInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Course Created!", "id": course.ID})
}

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]CourseResponse, len(courses))
	for i := range courses {
		resp[i] = courseToResponse(courses[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getCourse(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courseToResponse(*course))
}

func (h *Handler) updateCourse(c *gin.Context) {
	var req updateCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	course, err := h.courses.Update(c.Request.Context(), mustIdentity(c).UserID, c.Param("id"), domain.CoursePatch{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Edit Successful",
		"title":       course.Title,
		"description": course.Description,
		"price":       course.Price,
	})
}

func (h *Handler) deleteCourse(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), mustIdentity(c).UserID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Course deleted"})
}

func (h *Handler) listLessons(c *gin.Context) {
	lessons, err := h.courses.ListLessons(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]LessonResponse, len(lessons))
	for i, l := range lessons {
		resp[i] = LessonResponse{
			ID:       l.ID,
			CourseID: l.CourseID,
			Title:    l.Title,
			Content:  l.Content,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createLesson(c *gin.Context) {
	var req createLessonRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lesson, err := h.courses.CreateLesson(c.Request.Context(), mustIdentity(c).UserID, service.LessonInput{
		CourseID: req.CourseID,
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Lesson Created", "id": lesson.ID})
}

func (h *Handler) courseArchive(c *gin.Context) {
	url, expires, err := h.courses.ArchiveURL(c.Request.Context(), mustIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ArchiveResponse{
		URL:       url,
		ExpiresAt: expires.Format(time.RFC3339),
	})
}

func courseToResponse(course domain.Course) CourseResponse {
	return CourseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		Price:       course.Price,
		Instructor:  course.InstructorName,
	}
}
