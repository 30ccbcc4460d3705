package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateArticlePayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"company":"넥슨",
		"title":"메이플스토리 확률형 아이템 논란",
		"description":"확률 정보 공개를 둘러싼 이용자 반발이 이어지고 있다.",
		"original_link":"https://example.com/news/1",
		"published_at":"2026-08-01T09:00:00Z"
	}`)

	item, err := ValidateArticlePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if item.Company != "넥슨" {
		t.Fatalf("expected company=넥슨, got %q", item.Company)
	}
	if item.PayloadVersion != "v1" {
		t.Fatalf("expected payload_version=v1, got %q", item.PayloadVersion)
	}
}

func TestValidateArticlePayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"title":"Missing company"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing company")
	}
}

func TestValidateArticlePayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"company":"넥슨",
		"title":"   "
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateArticlePayload_BadVersion(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v2",
		"company":"넥슨",
		"title":"제목"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for unknown payload version")
	}
}

func TestValidateArticlePayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","company":"넥슨","title":"제목"} extra`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}

func TestValidateArticlePayload_BadDate(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"company":"넥슨",
		"title":"제목",
		"published_date":"08/01/2026"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for malformed date")
	}
}
