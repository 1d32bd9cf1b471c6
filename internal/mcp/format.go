package mcp

import (
	"fmt"
	"strings"

	"github.com/julienmessagingme/educnat/internal/descriptions"
	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/pipeline"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

const maxListedInInfo = 10

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatRequests(codes []string, catalog *saisine.Catalog) string {
	if len(codes) == 0 {
		return "  (none)\n"
	}
	var b strings.Builder
	for _, code := range codes {
		label := catalog.Label(code)
		if label == "" {
			label = code
		}
		fmt.Fprintf(&b, "  • %s (%s)\n", label, code)
	}
	return b.String()
}

func formatFiche(rec *store.FicheRecord, catalog *saisine.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fiche %d [%s]\n", rec.ID, rec.Status)
	fmt.Fprintf(&b, "Source: %s (%s)\n\n", rec.SourceFilename, rec.SourceType)

	b.WriteString("Élève\n")
	fmt.Fprintf(&b, "  Nom: %s\n", orDash(rec.Nom))
	fmt.Fprintf(&b, "  Prénom: %s\n", orDash(rec.Prenom))
	fmt.Fprintf(&b, "  Date de naissance: %s\n", orDash(rec.DateNaissance))
	fmt.Fprintf(&b, "  Classe: %s\n", orDash(rec.Classe))

	b.WriteString("Établissement\n")
	fmt.Fprintf(&b, "  Nom: %s\n", orDash(rec.EtablissementNom))
	fmt.Fprintf(&b, "  Adresse: %s\n", orDash(rec.EtablissementAdresse))
	fmt.Fprintf(&b, "  Email: %s\n", orDash(rec.EtablissementEmail))
	fmt.Fprintf(&b, "  Téléphone: %s\n", orDash(rec.EtablissementTel))

	b.WriteString("Saisine\n")
	fmt.Fprintf(&b, "  Origine: %s\n", orDash(rec.OrigineSaisine))
	fmt.Fprintf(&b, "  Nom de l'origine: %s\n", orDash(rec.OrigineNom))
	fmt.Fprintf(&b, "  Situation remontée par: %s\n", orDash(rec.SituationRemontee))
	fmt.Fprintf(&b, "  Date de la demande: %s\n", orDash(rec.DateDemande))

	b.WriteString("Demandes\n")
	b.WriteString(formatRequests(rec.Demandes, catalog))

	if rec.PDFOutputPath != "" {
		fmt.Fprintf(&b, "\nPDF: %s\n", rec.PDFOutputPath)
	}
	return b.String()
}

func formatDetection(res *document.Result, catalog *saisine.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Detection for: %s\n", res.Name)
	fmt.Fprintf(&b, "Format: %s\n", res.Format)
	fmt.Fprintf(&b, "Size: %d bytes\n", res.Size)
	if res.Pages > 0 {
		fmt.Fprintf(&b, "Pages: %d\n", res.Pages)
	}
	fmt.Fprintf(&b, "Highlighted passages: %t\n", res.Highlighted)
	if res.Format == document.FormatPDF {
		b.WriteString("\nPDF documents carry no highlighting; requests and origin are left to the model.\n")
	}
	if res.Degraded {
		b.WriteString("\n⚠️  WARNING: the highlighting could not be read; requests and origin are left to the model.\n")
	}

	b.WriteString("\nRequests:\n")
	b.WriteString(formatRequests(res.Detection.Options, catalog))

	b.WriteString("\nOrigin:\n")
	if res.Detection.Origin.IsZero() {
		b.WriteString("  (not found)\n")
	} else {
		fmt.Fprintf(&b, "  %s: %s\n", res.Detection.Origin.Type, res.Detection.Origin.Name)
	}
	return b.String()
}

func formatAnalyse(rec *store.AnalyseRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyse %d [%s] from %d document(s): %s\n\n", rec.ID, rec.Status, len(rec.SourceFiles), strings.Join(rec.SourceFiles, ", "))

	a := rec.Analyse
	fields := []struct{ label, value string }{
		{"Nom", a.NomEnfant},
		{"Prénom", a.PrenomEnfant},
		{"Date de naissance", a.DateDeNaissance},
		{"Établissement", a.EtablissementScolaire},
		{"Classe", a.Classe},
		{"Problématique", a.Problematique},
		{"Motif", a.Motif},
		{"Historique", a.Historique},
		{"Situation", a.Situation},
		{"Partenaires", a.Partenaires},
		{"Contexte familial", a.ContexteFamilial},
		{"Difficultés", a.Difficultes},
		{"Points d'appui", a.PointsAppui},
		{"En classe", a.EnClasse},
		{"Avec la communauté", a.AvecLaCommunaute},
		{"Demande formulée", a.DemandeFormulee},
	}
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %s\n", f.label, orDash(f.value))
	}
	if rec.PDFOutputPath != "" {
		fmt.Fprintf(&b, "\nPDF: %s\n", rec.PDFOutputPath)
	}
	return b.String()
}

func formatAnalysePage(page *store.AnalysePage) string {
	if page.Total == 0 {
		return "No analyses found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyses %d of %d (page %d/%d)\n\n", len(page.Analyses), page.Total, page.Page, page.TotalPages)
	for _, a := range page.Analyses {
		fmt.Fprintf(&b, "#%d [%s] %s %s, %d document(s), %s\n",
			a.ID, a.Status, orDash(a.NomEnfant), a.PrenomEnfant, len(a.SourceFiles), a.CreatedAt.Format("02/01/2006 15:04"))
	}
	return b.String()
}

func formatProposition(rec *store.PropositionRecord, prenom string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Proposition for fiche %d, Temps %d\n", rec.FicheID, rec.Temps)
	fmt.Fprintf(&b, "Date: %s\n", orDash(saisine.FormatPropositionDate(rec.DateProposition)))

	b.WriteString("Motifs:\n")
	if len(rec.Motifs) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, code := range rec.Motifs {
		fmt.Fprintf(&b, "  • %s: %s\n", code, orDash(saisine.MotifLines([]string{code}, prenom, rec.CustomMotif)))
	}
	fmt.Fprintf(&b, "Commentaire: %s\n", orDash(rec.Commentaire))

	b.WriteString("Évaluation de la situation:\n")
	if len(rec.Evaluation) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, code := range rec.Evaluation {
		fmt.Fprintf(&b, "  • %s\n", code)
	}
	fmt.Fprintf(&b, "Temps 2: %s\n", orDash(saisine.FormatPropositionDate(rec.Temps2Date)))
	fmt.Fprintf(&b, "Commentaire Temps 2: %s\n", orDash(rec.Temps2Commentaire))
	return b.String()
}

func formatMotifs(motifs []saisine.Motif) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d standard answers:\n\n", len(motifs))
	for _, m := range motifs {
		fmt.Fprintf(&b, "%s: %s\n", m.Code, m.Text)
	}
	return b.String()
}

func formatFichePage(page *store.FichePage) string {
	if page.Total == 0 {
		return "No fiches found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fiches %d of %d (page %d/%d)\n\n", len(page.Fiches), page.Total, page.Page, page.TotalPages)
	for _, f := range page.Fiches {
		fmt.Fprintf(&b, "#%d [%s] %s %s, %s, %s\n",
			f.ID, f.Status, orDash(f.Nom), f.Prenom, orDash(f.SourceFilename), f.CreatedAt.Format("02/01/2006 15:04"))
	}
	return b.String()
}

func formatDocuments(dir, query string, files []pipeline.FileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d document(s) in directory: %s\n", len(files), dir)
	if query != "" {
		fmt.Fprintf(&b, "Search query: %s\n", query)
	}
	b.WriteString("\nFiles:\n")
	for i, file := range files {
		fmt.Fprintf(&b, "%d. %s\n", i+1, file.Name)
		fmt.Fprintf(&b, "   Path: %s\n", file.Path)
		fmt.Fprintf(&b, "   Size: %d bytes\n", file.Size)
		fmt.Fprintf(&b, "   Modified: %s\n", file.ModifiedTime)
	}
	return b.String()
}

func available(ok bool) string {
	if ok {
		return "available"
	}
	return "not configured"
}

func (s *Server) formatServerInfo(files []pipeline.FileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&b, "📁 Document Directory: %s\n", s.service.Directory())
	fmt.Fprintf(&b, "📏 Max File Size: %d MB\n", s.service.Extractor().MaxFileSize()/(1024*1024))
	fmt.Fprintf(&b, "🤖 AI extraction: %s\n", available(s.service.HasAI()))
	fmt.Fprintf(&b, "🖨️  PDF rendering: %s\n\n", available(s.service.HasRenderer()))

	if len(files) > 0 {
		fmt.Fprintf(&b, "📂 Directory Contents (%d documents found):\n", len(files))
		for i, file := range files {
			if i >= maxListedInInfo {
				fmt.Fprintf(&b, "   ... and %d more files\n", len(files)-maxListedInInfo)
				break
			}
			fmt.Fprintf(&b, "   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("📂 Directory Contents: no documents found\n\n")
	}

	b.WriteString("🏷️  Request Catalog:\n")
	for i, e := range s.service.Catalog().Entries() {
		fmt.Fprintf(&b, "  d%d %s: %s\n", i+1, e.Code, e.Label)
	}

	b.WriteString("\n🛠️  Available Tools:\n")
	for _, name := range []string{
		descriptions.ExtractFile,
		descriptions.DetectFile,
		descriptions.AnalyseFiles,
		descriptions.GetFiche,
		descriptions.ListFiches,
		descriptions.UpdateFiche,
		descriptions.RenderFiche,
		descriptions.SaveProposition,
		descriptions.GetProposition,
		descriptions.ListMotifs,
		descriptions.GetAnalyse,
		descriptions.ListAnalyses,
		descriptions.UpdateAnalyse,
		descriptions.RenderAnalyse,
		descriptions.DeleteAnalyse,
		descriptions.ListDocuments,
		descriptions.ServerInfo,
	} {
		fmt.Fprintf(&b, "  • %s\n", name)
	}

	b.WriteString("\nWorkflow: saisine_extract_file → review → saisine_update_fiche → saisine_save_proposition → saisine_render_fiche\n")
	return b.String()
}
