package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SAMS API",
        "description": "Session-based attendance and assessment aggregation service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Attendance", "description": "Class attendance sessions"},
        {"name": "Assessments", "description": "Examination marks and review workflow"},
        {"name": "Statistics", "description": "Attendance and examination rollups"},
        {"name": "Exports", "description": "CSV exports with signed download links"}
    ],
    "paths": {
        "/attendance/sessions": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance sessions",
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Record attendance for a class on a date",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"},
                    "409": {"description": "Concurrent modification"}
                }
            }
        },
        "/attendance/sessions/{id}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Get one attendance session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/attendance/sessions/{id}/entries": {
            "patch": {
                "tags": ["Attendance"],
                "summary": "Re-mark many students in one call",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkMarkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions/{id}/entries/{studentId}": {
            "patch": {
                "tags": ["Attendance"],
                "summary": "Re-mark one student's attendance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/attendance/sessions/{id}/finalize": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Finalize an attendance session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assessments/marks": {
            "put": {
                "tags": ["Assessments"],
                "summary": "Record a student's marks for an examination",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetMarksRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"},
                    "409": {"description": "Concurrent modification"}
                }
            }
        },
        "/assessments/exams/{examId}/students/{studentId}/absent": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Record an absent examination outcome",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assessments/{id}": {
            "get": {
                "tags": ["Assessments"],
                "summary": "Get one assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/assessments/{id}/submit": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Submit an assessment for review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid status transition"}
                }
            }
        },
        "/assessments/{id}/verify": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Verify a submitted assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid status transition"}
                }
            }
        },
        "/assessments/{id}/publish": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Publish a verified assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid status transition"}
                }
            }
        },
        "/statistics/exams/{examId}": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Examination rollup statistics",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/statistics/exams/{examId}/ranks": {
            "post": {
                "tags": ["Statistics"],
                "summary": "Assign ordinal ranks for an examination",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/statistics/classes/{classId}/attendance": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Class attendance rollup",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/statistics/classes/{classId}/students/{studentId}/attendance": {
            "get": {
                "tags": ["Statistics"],
                "summary": "One student's attendance summary within a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/exports/exams/{examId}": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export examination results as CSV",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/exports/classes/{classId}": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export class attendance as CSV",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        }
    },
    "definitions": {
        "EntryInput": {
            "type": "object",
            "required": ["student_id", "status"],
            "properties": {
                "student_id": {"type": "string"},
                "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE", "EXCUSED", "LEFT_EARLY"]},
                "arrival_time": {"type": "string", "format": "date-time"},
                "departure_time": {"type": "string", "format": "date-time"},
                "absence_reason": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "UpsertSessionRequest": {
            "type": "object",
            "required": ["class_id", "date", "attendance_type"],
            "properties": {
                "class_id": {"type": "string"},
                "date": {"type": "string", "example": "2026-04-10"},
                "attendance_type": {"type": "string", "enum": ["NORMAL", "TEACHER_LEAVE", "SCHOOL_HOLIDAY"]},
                "start_time": {"type": "string", "format": "date-time"},
                "end_time": {"type": "string", "format": "date-time"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/EntryInput"}},
                "notes": {"type": "string"}
            }
        },
        "MarkEntryRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE", "EXCUSED", "LEFT_EARLY"]},
                "arrival_time": {"type": "string", "format": "date-time"},
                "departure_time": {"type": "string", "format": "date-time"},
                "absence_reason": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "BulkMarkRequest": {
            "type": "object",
            "required": ["entries"],
            "properties": {
                "entries": {"type": "array", "items": {"$ref": "#/definitions/EntryInput"}}
            }
        },
        "DivisionMarkInput": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "obtained": {"type": "number"}
            }
        },
        "SubjectMarkInput": {
            "type": "object",
            "required": ["subject_id"],
            "properties": {
                "subject_id": {"type": "string"},
                "obtained": {"type": "number"},
                "divisions": {"type": "array", "items": {"$ref": "#/definitions/DivisionMarkInput"}}
            }
        },
        "SetMarksRequest": {
            "type": "object",
            "required": ["exam_id", "student_id"],
            "properties": {
                "exam_id": {"type": "string"},
                "student_id": {"type": "string"},
                "is_present": {"type": "boolean"},
                "subject_marks": {"type": "array", "items": {"$ref": "#/definitions/SubjectMarkInput"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
