package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ZanzyTHEbar/ecoscan/internal/lookup"
	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle = lipgloss.NewStyle().Width(12)
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// scoreColor follows the rating bands.
func scoreColor(score int) lipgloss.Color {
	switch {
	case score >= 80:
		return lipgloss.Color("10") // green
	case score >= 60:
		return lipgloss.Color("11") // yellow
	case score >= 40:
		return lipgloss.Color("208") // orange
	default:
		return lipgloss.Color("9") // red
	}
}

func scoreLine(label string, score int) string {
	value := lipgloss.NewStyle().Foreground(scoreColor(score)).Render(fmt.Sprintf("%3d", score))
	return labelStyle.Render(label) + value + dimStyle.Render(" / 100")
}

func renderCard(result lookup.Result) string {
	p := result.Product

	var b strings.Builder
	name := p.Name
	if p.Brand != "" {
		name += dimStyle.Render(" by " + p.Brand)
	}
	b.WriteString(titleStyle.Render(name) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %s · region %s", p.ID, p.Category, result.Region)) + "\n\n")

	eco := lipgloss.NewStyle().Bold(true).Foreground(scoreColor(p.EcoScore)).
		Render(fmt.Sprintf("%d %s", p.EcoScore, result.Rating))
	b.WriteString(labelStyle.Render("Eco-score") + eco + "\n")
	b.WriteString(scoreLine("Packaging", p.PackagingScore) + dimStyle.Render(" "+string(p.PackagingType)) + "\n")
	b.WriteString(scoreLine("Carbon", p.CarbonScore) + "\n")
	b.WriteString(scoreLine("Ethics", p.EthicsScore) + "\n")

	if len(p.Certifications) > 0 {
		names := make([]string, len(p.Certifications))
		for i, c := range p.Certifications {
			names[i] = c.Name
		}
		b.WriteString("\n" + labelStyle.Render("Labels") + strings.Join(names, ", ") + "\n")
	}
	if len(p.Materials) > 0 {
		parts := make([]string, len(p.Materials))
		for i, m := range p.Materials {
			parts[i] = fmt.Sprintf("%s %.0f%%", m.Name, m.Percentage)
		}
		b.WriteString(labelStyle.Render("Materials") + strings.Join(parts, ", ") + "\n")
	}
	if p.IsLocal {
		b.WriteString(labelStyle.Render("Origin") + "local\n")
	}

	if result.Breakdown != nil {
		b.WriteString("\n" + renderBreakdown(*result.Breakdown))
	}
	if result.Source != "" {
		b.WriteString("\n" + dimStyle.Render("source: "+string(result.Source)))
	}

	return cardStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func renderBreakdown(bd scoring.Breakdown) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Breakdown") + "\n")
	fmt.Fprintf(&b, "%s%+v\n", labelStyle.Render("Packaging"), bd.Packaging)
	fmt.Fprintf(&b, "%s%+v\n", labelStyle.Render("Carbon"), bd.Carbon)
	fmt.Fprintf(&b, "%s%+v\n", labelStyle.Render("Ethics"), bd.Ethics)
	fmt.Fprintf(&b, "%s%+v\n", labelStyle.Render("Eco"), bd.Eco)
	return b.String()
}

func renderRegions(regions []scoring.Region, home string) string {
	codeStyle := lipgloss.NewStyle().Width(8).Bold(true)

	var b strings.Builder
	for _, r := range regions {
		line := codeStyle.Render(r.Code) + r.Name
		if len(r.Aliases) > 0 {
			line += dimStyle.Render(" (" + strings.Join(r.Aliases, ", ") + ")")
		}
		if r.Code == home {
			line += dimStyle.Render(" home")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
