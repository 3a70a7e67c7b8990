package i18n

import (
	"net/http"
	"strings"
)

// Language is the resolved response locale. Only two are supported; the
// resolver always returns one of them.
type Language string

const (
	French  Language = "FR"
	English Language = "EN"
)

// Resolve derives the response language from the Accept-Language header.
// Any value mentioning French wins, everything else falls back to English,
// and an absent or unrecognized header defaults to French. Resolve never
// fails; every caller gets a supported language.
func Resolve(r *http.Request) Language {
	header := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if header == "" {
		return French
	}
	if strings.Contains(strings.ToLower(header), "fr") {
		return French
	}
	return English
}

// T looks up the message for key in the given language. Unknown keys fall
// back to the key itself so a missing catalog entry is visible but never
// breaks the response envelope.
func T(lang Language, key string) string {
	entry, ok := catalog[key]
	if !ok {
		return key
	}
	if lang == English {
		return entry.en
	}
	return entry.fr
}

type message struct {
	fr string
	en string
}

var catalog = map[string]message{
	// Rejections, keyed by their wire error name.
	"MISSING_TOKEN": {
		fr: "Jeton d'authentification manquant.",
		en: "Authentication token is missing.",
	},
	"INVALID_TOKEN": {
		fr: "Jeton d'authentification invalide.",
		en: "Authentication token is invalid.",
	},
	"TOKEN_EXPIRED": {
		fr: "Le jeton d'authentification a expiré.",
		en: "Authentication token has expired.",
	},
	"TOKEN_REVOKED": {
		fr: "Le jeton d'authentification a été révoqué.",
		en: "Authentication token has been revoked.",
	},
	"USER_NOT_FOUND": {
		fr: "Utilisateur introuvable.",
		en: "User not found.",
	},
	"ACCOUNT_LOCKED": {
		fr: "Compte temporairement verrouillé suite à plusieurs tentatives échouées. Réessayez plus tard.",
		en: "Account temporarily locked after repeated failed attempts. Try again later.",
	},
	"INVALID_CREDENTIALS": {
		fr: "Adresse e-mail ou mot de passe incorrect.",
		en: "Incorrect email address or password.",
	},
	"EXTERNAL_AUTH_ACCOUNT": {
		fr: "Ce compte utilise un fournisseur d'authentification externe.",
		en: "This account uses an external authentication provider.",
	},
	"VALIDATION_ERROR": {
		fr: "La requête contient des données invalides.",
		en: "The request contains invalid data.",
	},
	"CONFLICT": {
		fr: "Un compte avec cette adresse e-mail existe déjà.",
		en: "An account with this email address already exists.",
	},
	"RATE_LIMIT_EXCEEDED": {
		fr: "Trop de requêtes. Réessayez plus tard.",
		en: "Too many requests. Try again later.",
	},
	"INTERNAL_ERROR": {
		fr: "Une erreur interne est survenue.",
		en: "An internal error occurred.",
	},
	"NOT_FOUND": {
		fr: "Ressource introuvable.",
		en: "Resource not found.",
	},

	// Success messages.
	"register.success": {
		fr: "Compte créé avec succès.",
		en: "Account created successfully.",
	},
	"login.success": {
		fr: "Connexion réussie.",
		en: "Logged in successfully.",
	},
	"refresh.success": {
		fr: "Jeton renouvelé avec succès.",
		en: "Token refreshed successfully.",
	},
	"logout.success": {
		fr: "Déconnexion réussie.",
		en: "Logged out successfully.",
	},
	"profile.fetched": {
		fr: "Profil récupéré avec succès.",
		en: "Profile retrieved successfully.",
	},
	"profile.updated": {
		fr: "Profil mis à jour avec succès.",
		en: "Profile updated successfully.",
	},
	"password.changed": {
		fr: "Mot de passe modifié avec succès.",
		en: "Password changed successfully.",
	},
	"account.deleted": {
		fr: "Compte supprimé définitivement.",
		en: "Account permanently deleted.",
	},
	"reset.requested": {
		fr: "Si un compte existe pour cette adresse, un lien de réinitialisation a été envoyé.",
		en: "If an account exists for this address, a reset link has been sent.",
	},
	"reset.completed": {
		fr: "Mot de passe réinitialisé avec succès.",
		en: "Password reset successfully.",
	},
}
