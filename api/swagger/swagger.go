package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Workflow API",
        "description": "Course proposals, enrollment approvals and grade rosters",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Courses", "description": "Course proposals and the catalogue"},
        {"name": "Enrollments", "description": "Student requests and approval decisions"},
        {"name": "Rosters", "description": "Grade roster export and import"}
    ],
    "paths": {
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List all courses",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Propose a course",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ProposeCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unresolved instructor", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/mine": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses taught by the caller",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses/proposals": {
            "get": {
                "tags": ["Courses"],
                "summary": "List proposals awaiting review",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses/decisions": {
            "post": {
                "tags": ["Courses"],
                "summary": "Approve or reject proposals",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CourseDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown course", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get course detail",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete a course and its enrollments",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments of a taught course",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "department", "type": "string"},
                    {"in": "query", "name": "year", "type": "integer"},
                    {"in": "query", "name": "search", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses/{id}/roster": {
            "get": {
                "tags": ["Rosters"],
                "summary": "Export the approved roster",
                "produces": ["text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "xlsx", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster file"},
                    "422": {"description": "No eligible students", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rosters"],
                "summary": "Import grades from a roster file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "formData", "name": "file", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Row errors", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/courses": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List courses visible to the student",
                "parameters": [
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "department", "type": "string"},
                    {"in": "query", "name": "slot", "type": "string"},
                    {"in": "query", "name": "credits", "type": "number"},
                    {"in": "query", "name": "status", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/student/actions": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Credit, drop or withdraw from selected courses",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/StudentActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid action for selection or duplicate live enrollment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/instructor-decisions": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Approve or reject enrollments awaiting the instructor",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/EnrollmentDecisionRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/enrollments/pending-fa": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments awaiting the faculty advisor",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/enrollments/fa-decisions": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Approve or reject enrollments awaiting the faculty advisor",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/EnrollmentDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid action for selection", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "InstructorInput": {
            "type": "object",
            "properties": {
                "instructorId": {"type": "string"},
                "name": {"type": "string"},
                "isCoordinator": {"type": "boolean"}
            }
        },
        "ProposeCourseRequest": {
            "type": "object",
            "required": ["courseCode", "courseName", "offeringDept", "session", "slot"],
            "properties": {
                "courseCode": {"type": "string"},
                "courseName": {"type": "string"},
                "offeringDept": {"type": "string"},
                "credits": {"type": "number"},
                "session": {"type": "string"},
                "slot": {"type": "string"},
                "allowedEntryYears": {"type": "array", "items": {"type": "integer"}},
                "instructors": {"type": "array", "items": {"$ref": "#/definitions/InstructorInput"}}
            }
        },
        "CourseDecisionRequest": {
            "type": "object",
            "required": ["courseIds", "action"],
            "properties": {
                "courseIds": {"type": "array", "items": {"type": "string"}},
                "action": {"type": "string", "enum": ["approve", "reject"]}
            }
        },
        "StudentActionRequest": {
            "type": "object",
            "required": ["courseIds", "action"],
            "properties": {
                "courseIds": {"type": "array", "items": {"type": "string"}},
                "action": {"type": "string", "enum": ["credit", "drop", "withdraw"]}
            }
        },
        "EnrollmentDecisionRequest": {
            "type": "object",
            "required": ["enrollmentIds", "action"],
            "properties": {
                "enrollmentIds": {"type": "array", "items": {"type": "string"}},
                "action": {"type": "string", "enum": ["approve", "reject"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
