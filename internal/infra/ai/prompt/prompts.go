package prompt

import "strings"

// Category selects one of the built-in inspection prompts.
type Category string

const (
	CategorySafety      Category = "safety"
	CategoryEquipment   Category = "equipment"
	CategoryEnvironment Category = "environment"
)

// GetSystemPrompt pins the answer layout the response parser reads.
func GetSystemPrompt() string {
	return `당신은 산업 현장 안전 점검 전문가입니다. 이미지를 근거로만 판단하고, 다음 형식을 지켜 한국어로 답하세요.

점수: 0-100 사이의 정수
문제점:
- 발견된 문제를 한 줄에 하나씩
권고사항:
- 실행 가능한 조치를 한 줄에 하나씩`
}

var defaults = map[Category]string{
	CategorySafety: `다음 산업 현장 이미지를 분석하여 안전 규정 준수 여부를 평가해주세요:

1. 개인보호구(PPE) 착용 상태
2. 작업 환경의 안전성
3. 장비 및 도구의 상태
4. 안전 표지판 및 경고 표시
5. 작업자의 안전한 작업 자세

다음 형식으로 응답해주세요:
- 준수 점수: 0-100점
- 발견된 문제점: 구체적으로 나열
- 개선 권고사항: 실행 가능한 방안 제시`,

	CategoryEquipment: `다음 장비/도구 이미지를 분석하여 안전 상태를 평가해주세요:

1. 장비의 물리적 상태 (손상, 마모, 부식 등)
2. 안전 장치 작동 여부
3. 정기 점검 스티커 및 표시
4. 보호 커버 및 가드 설치 상태
5. 전기 안전 (접지, 절연 등)

응답 형식:
- 안전 점수: 0-100점
- 문제점: 세부 내용
- 권고사항: 즉시/단기/장기 조치사항`,

	CategoryEnvironment: `다음 작업 환경 이미지를 분석하여 안전성을 평가해주세요:

1. 통로 및 비상구 확보 상태
2. 조명 및 가시성
3. 바닥 상태 (미끄럼, 장애물 등)
4. 화재 안전 (소화기, 스프링클러 등)
5. 환기 및 공기 질
6. 정리정돈 상태

응답 형식:
- 환경 안전 점수: 0-100점
- 위험 요소: 구체적 위치 및 내용
- 개선 방안: 우선순위별 조치사항`,
}

// Default returns the built-in prompt for c, the safety prompt when c is unknown.
func Default(c Category) string {
	if p, ok := defaults[Category(strings.ToLower(string(c)))]; ok {
		return p
	}
	return defaults[CategorySafety]
}

// Categories lists the built-in prompt categories.
func Categories() []Category {
	return []Category{CategorySafety, CategoryEquipment, CategoryEnvironment}
}
