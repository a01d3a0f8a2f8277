package ai

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

type cannedAnalysis struct {
	score           int
	issues          []string
	recommendations []string
}

var demoAnalyses = map[string]cannedAnalysis{
	"개인보호구 착용": {
		score:           85,
		issues:          []string{"일부 작업자의 안전모 미착용", "보호 장갑 착용률 개선 필요"},
		recommendations: []string{"모든 작업자의 안전모 착용 의무화", "정기적인 보호구 점검 실시", "안전교육 강화 필요"},
	},
	"작업 환경 안전성": {
		score:           78,
		issues:          []string{"통로에 장애물 발견", "비상구 표시 불명확"},
		recommendations: []string{"작업 구역 정리정돈 실시", "비상구 표시 개선", "정기적인 환경 점검 필요"},
	},
	"장비 및 도구 상태": {
		score:           92,
		issues:          []string{"일부 도구의 정기 점검 스티커 만료"},
		recommendations: []string{"정기 점검 일정 관리 개선", "도구 상태 모니터링 강화"},
	},
}

var defaultDemoAnalysis = cannedAnalysis{
	score:           80,
	issues:          []string{"전반적으로 양호한 상태", "경미한 개선사항 존재"},
	recommendations: []string{"현재 상태 유지", "정기적인 점검 지속", "안전 의식 향상 교육"},
}

// demoAnalysis answers from the canned table; unknown labels get the default entry.
func (s *Service) demoAnalysis(itemLabel string) inspections.AnalysisResult {
	a, ok := demoAnalyses[itemLabel]
	if !ok {
		a = defaultDemoAnalysis
	}
	return inspections.AnalysisResult{
		ComplianceScore: a.score,
		IssuesFound:     append([]string(nil), a.issues...),
		Recommendations: append([]string(nil), a.recommendations...),
		AIAnalysis:      renderDemoText(itemLabel, a),
		AnalysisTime:    s.clock.Now(),
		ItemAnalyzed:    itemLabel,
		DemoMode:        true,
	}
}

// renderDemoText writes the canned answer in the layout the parser reads.
func renderDemoText(itemLabel string, a cannedAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[데모 모드] %s 분석 결과:\n\n점수: %d점\n\n문제점:\n", itemLabel, a.score)
	for _, it := range a.issues {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n권고사항:\n")
	for i, it := range a.recommendations {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + it)
	}
	return b.String()
}
