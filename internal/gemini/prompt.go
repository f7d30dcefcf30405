package gemini

import (
	"fmt"
	"strings"

	"github.com/railmadad/complaint-api/internal/models"
)

const systemInstruction = `You are an expert railway complaint analyst. You look at a photo taken by a rail passenger and classify the issue it shows. You always answer with a single JSON object and nothing else.`

const transcribePrompt = `Transcribe every piece of printed or handwritten text visible on this railway ticket exactly as it appears, line by line. Do not summarise, translate or add commentary. If no text is readable, answer with an empty string.`

// BuildPrompt renders the classification prompt, embedding the rider's text when present.
func BuildPrompt(additionalText string) string {
	var b strings.Builder
	b.WriteString("Analyze the uploaded image and classify the railway issue.\n\n")

	b.WriteString("RAILWAY ISSUE CATEGORIES (select ONE):\n")
	for i, category := range models.IssueCategories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, category)
	}

	b.WriteString(`
PRIORITY LEVELS:
- CRITICAL: fire, smoke, stampede risk, security threats, harassment
- HIGH: overcrowding, safety risks, accessibility blockers
- MEDIUM: AC, fan or electrical failure, toilet overflow, water outage
- LOW: cleanliness or waste issues without immediate risk

DEPARTMENT ROUTING:
`)
	routes := [][2]string{
		{"Fire / Security / Harassment", models.DepartmentEmergency},
		{"Overcrowding / Safety risk / Accessibility", models.DepartmentStation},
		{"AC / Fans / Electrical / Water outage", models.DepartmentMaintenance},
		{"Cleanliness / Toilets / Waste", models.DepartmentHousekeeping},
		{"Food / Vendors", models.DepartmentCatering},
		{"Information / Signage", models.DepartmentOperations},
	}
	for _, r := range routes {
		fmt.Fprintf(&b, "- %s -> %s\n", r[0], r[1])
	}
	b.WriteString("\n")

	if text := strings.TrimSpace(additionalText); text != "" {
		fmt.Fprintf(&b, "ADDITIONAL USER CONTEXT: %q\n\n", text)
	}

	b.WriteString(`TASK:
1. Visually analyze the image
2. Identify the railway issue shown
3. Classify it into ONE of the categories above
4. Assign priority (CRITICAL, HIGH, MEDIUM or LOW)
5. Determine the department using the routing rules
6. Write a professional complaint description suitable for official filing

Return ONLY valid JSON in this exact format:
{
  "issue_category": "exact category name from the list above",
  "issue_details": "detailed description of what you see in the image",
  "priority": "CRITICAL|HIGH|MEDIUM|LOW",
  "department": "exact department name from the routing rules",
  "complaint_description": "professional complaint text",
  "confidence": 0.0
}`)
	return b.String()
}
